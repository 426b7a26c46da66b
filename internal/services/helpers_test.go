package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbCounter int64

// newTestDB opens a private in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	require.NoError(t, models.SeedDefaultData(db, 30))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Role: models.UserRoleUser, IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createSpace(t *testing.T, db *gorm.DB, admin *models.User, members ...*models.User) *models.Space {
	t.Helper()
	space := &models.Space{Name: "Space of " + admin.Username, Domain: "space-" + admin.Username, CreatedBy: admin.ID}
	require.NoError(t, db.Create(space).Error)
	require.NoError(t, db.Create(&models.SpaceRole{SpaceID: space.ID, UserID: admin.ID, IsAdmin: true}).Error)
	for _, m := range members {
		require.NoError(t, db.Create(&models.SpaceRole{SpaceID: space.ID, UserID: m.ID}).Error)
	}
	return space
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) ofType(eventType string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type captureNotifier struct {
	calls int
	err   error
}

func (n *captureNotifier) NotifyEvaluationCompleted(context.Context, *domain.Proposal, *domain.Evaluation) error {
	n.calls++
	return n.err
}

// governance bundles the services a workflow test needs.
type governance struct {
	db          *gorm.DB
	roles       *SpaceRoleService
	votes       *VoteService
	proposals   *ProposalService
	evaluations *EvaluationService
	events      *capturePublisher
	notifier    *captureNotifier
}

func newGovernance(t *testing.T) *governance {
	t.Helper()
	db := newTestDB(t)
	events := &capturePublisher{}
	notifier := &captureNotifier{}
	roles := NewSpaceRoleService(db)
	votes := NewVoteService(db, roles, events)
	evaluations := NewEvaluationService(db, roles, votes, events, notifier)
	votes.SetOnClose(evaluations.HandleVoteClosed)
	return &governance{
		db:          db,
		roles:       roles,
		votes:       votes,
		proposals:   NewProposalService(db, roles, votes, events),
		evaluations: evaluations,
		events:      events,
		notifier:    notifier,
	}
}
