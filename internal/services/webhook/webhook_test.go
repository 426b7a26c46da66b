package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbCounter int64

type received struct {
	event     string
	signature string
	body      []byte
}

// endpoint records requests and answers with the configured status.
type endpoint struct {
	mu       sync.Mutex
	status   int
	requests []received
}

func (e *endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, received{
		event:     r.Header.Get("X-Webhook-Event"),
		signature: r.Header.Get("X-Webhook-Signature"),
		body:      body,
	})
	w.WriteHeader(e.status)
}

func (e *endpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func (e *endpoint) request(i int) received {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[i]
}

func (e *endpoint) setStatus(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = code
}

type fixture struct {
	ctx           context.Context
	db            *gorm.DB
	queue         *services.SyncQueue
	dispatcher    *Dispatcher
	deliverer     *Deliverer
	subscriptions *SubscriptionService
	admin         string
	member        string
	spaceID       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:webhook_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	admin := &models.User{Username: "admin", IsActive: true}
	member := &models.User{Username: "member", IsActive: true}
	require.NoError(t, db.Create(admin).Error)
	require.NoError(t, db.Create(member).Error)
	space := &models.Space{Name: "DAO", Domain: "dao", CreatedBy: admin.ID}
	require.NoError(t, db.Create(space).Error)
	require.NoError(t, db.Create(&models.SpaceRole{SpaceID: space.ID, UserID: admin.ID, IsAdmin: true}).Error)
	require.NoError(t, db.Create(&models.SpaceRole{SpaceID: space.ID, UserID: member.ID}).Error)

	queue := services.NewSyncQueue()
	dispatcher := NewDispatcher(db, queue)
	deliverer := NewDeliverer(db, &config.WebhookConfig{Timeout: 2 * time.Second})
	queue.Handle(TaskDeliver, deliverer.Process)

	return &fixture{
		ctx:           context.Background(),
		db:            db,
		queue:         queue,
		dispatcher:    dispatcher,
		deliverer:     deliverer,
		subscriptions: NewSubscriptionService(db, services.NewSpaceRoleService(db), dispatcher, deliverer),
		admin:         admin.ID,
		member:        member.ID,
		spaceID:       space.ID,
	}
}

func (f *fixture) subscribe(t *testing.T, target string, events ...string) *CreatedSubscription {
	t.Helper()
	sub, err := f.subscriptions.Create(f.ctx, f.admin, f.spaceID, &CreateSubscriptionRequest{URL: target, Secret: "shh", Events: events})
	require.NoError(t, err)
	return sub
}

func (f *fixture) deliveries(t *testing.T) []models.WebhookDelivery {
	t.Helper()
	var out []models.WebhookDelivery
	require.NoError(t, f.db.Order("created_at ASC").Find(&out).Error)
	return out
}

func TestSubscribes(t *testing.T) {
	tests := []struct {
		events    string
		eventType string
		expected  bool
	}{
		{"*", domain.EventVoteClosed, true},
		{"vote.created, vote.closed", domain.EventVoteClosed, true},
		{"vote.created", domain.EventProposalStatusChanged, false},
		{"vote.created", domain.EventPing, true},
		{"", domain.EventVoteCreated, false},
	}

	for _, tt := range tests {
		t.Run(tt.events+"/"+tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.expected, Subscribes(tt.events, tt.eventType))
		})
	}
}

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"type":"ping"}`)
	sig := Sign("secret", body)
	assert.Len(t, sig, 64)
	assert.True(t, Verify("secret", body, "sha256="+sig))
	assert.True(t, Verify("secret", body, sig))
	assert.False(t, Verify("other", body, "sha256="+sig))
	assert.False(t, Verify("secret", []byte(`{}`), "sha256="+sig))
}

func TestPublish_DeliversSignedEvent(t *testing.T) {
	f := newFixture(t)
	ep := &endpoint{status: http.StatusOK}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	f.subscribe(t, srv.URL, domain.EventProposalStatusChanged)
	event := domain.NewEvent(domain.EventProposalStatusChanged, f.spaceID, map[string]interface{}{"result": "pass"})

	require.NoError(t, f.dispatcher.Publish(f.ctx, event))
	require.NoError(t, f.dispatcher.Publish(f.ctx, domain.NewEvent(domain.EventVoteCreated, f.spaceID, nil)))
	require.NoError(t, f.dispatcher.Publish(f.ctx, domain.NewEvent(domain.EventProposalStatusChanged, "other-space", nil)))
	f.queue.Wait()

	require.Equal(t, 1, ep.count())
	got := ep.request(0)
	assert.Equal(t, domain.EventProposalStatusChanged, got.event)
	assert.True(t, Verify("shh", got.body, got.signature))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(got.body, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "pass", decoded.Data["result"])

	deliveries := f.deliveries(t)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryStatusDelivered, deliveries[0].Status)
	assert.Equal(t, 1, deliveries[0].Attempts)
	assert.Equal(t, http.StatusOK, deliveries[0].ResponseCode)
	assert.NotNil(t, deliveries[0].DeliveredAt)
}

func TestDeliver_FailureThenRetry(t *testing.T) {
	f := newFixture(t)
	ep := &endpoint{status: http.StatusInternalServerError}
	srv := httptest.NewServer(ep)
	defer srv.Close()
	f.subscribe(t, srv.URL)

	require.NoError(t, f.dispatcher.Publish(f.ctx, domain.NewEvent(domain.EventVoteClosed, f.spaceID, nil)))
	f.queue.Wait()

	deliveries := f.deliveries(t)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryStatusFailed, deliveries[0].Status)
	assert.Equal(t, http.StatusInternalServerError, deliveries[0].ResponseCode)
	assert.Contains(t, deliveries[0].Error, "500")

	queued, err := f.dispatcher.RetryFailed(f.ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, queued, "attempts exhausted")

	ep.setStatus(http.StatusNoContent)
	task := RetryFailedTask("@every 5m", f.dispatcher, 3)
	assert.Equal(t, services.TaskRetryFailedWebhook, task.Name)
	require.NoError(t, task.Run(f.ctx))
	f.queue.Wait()

	deliveries = f.deliveries(t)
	assert.Equal(t, models.DeliveryStatusDelivered, deliveries[0].Status)
	assert.Equal(t, 2, deliveries[0].Attempts)
	assert.Equal(t, 2, ep.count())

	_, err = f.deliverer.Deliver(f.ctx, deliveries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, ep.count(), "delivered deliveries are not sent again")
}

// downQueue rejects every task.
type downQueue struct{}

func (downQueue) Enqueue(context.Context, services.Task) error { return errors.New("redis down") }
func (downQueue) IsAsync() bool                                 { return true }
func (downQueue) Close() error                                  { return nil }

func TestPublish_UnqueuedDeliveryIsRetried(t *testing.T) {
	f := newFixture(t)
	ep := &endpoint{status: http.StatusOK}
	srv := httptest.NewServer(ep)
	defer srv.Close()
	f.subscribe(t, srv.URL)

	f.dispatcher.queue = downQueue{}
	err := f.dispatcher.Publish(f.ctx, domain.NewEvent(domain.EventVoteClosed, f.spaceID, nil))
	require.Error(t, err)

	deliveries := f.deliveries(t)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryStatusFailed, deliveries[0].Status)
	assert.Zero(t, deliveries[0].Attempts)
	assert.Contains(t, deliveries[0].Error, "redis down")

	queued, err := f.dispatcher.RetryFailed(f.ctx, 3)
	assert.Error(t, err)
	assert.Zero(t, queued)
	assert.Equal(t, models.DeliveryStatusFailed, f.deliveries(t)[0].Status, "still retryable while the queue is down")

	f.dispatcher.queue = f.queue
	queued, err = f.dispatcher.RetryFailed(f.ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
	f.queue.Wait()

	assert.Equal(t, models.DeliveryStatusDelivered, f.deliveries(t)[0].Status)
	assert.Equal(t, 1, ep.count())
}

func TestDeliver_DeletedSubscriptionIsDiscarded(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(t, "http://127.0.0.1:1/hook")
	payload := []byte(`{}`)
	delivery, err := f.dispatcher.createDelivery(f.ctx, sub.WebhookSubscription, domain.NewEvent(domain.EventPing, f.spaceID, nil), payload)
	require.NoError(t, err)
	require.NoError(t, f.subscriptions.Delete(f.ctx, f.admin, sub.ID))

	got, err := f.deliverer.Deliver(f.ctx, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDiscarded, got.Status)

	queued, err := f.dispatcher.RetryFailed(f.ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestProcess_RejectsBadPayload(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.deliverer.Process(f.ctx, []byte("not json")))
	assert.Error(t, f.deliverer.Process(f.ctx, []byte(`{"delivery_id":"missing"}`)))
}

func TestSubscriptionService(t *testing.T) {
	f := newFixture(t)
	ep := &endpoint{status: http.StatusOK}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	invalid := []CreateSubscriptionRequest{
		{URL: "ftp://example.com/hook"},
		{URL: "/relative"},
		{URL: srv.URL, Events: []string{"bounty.paid"}},
	}
	for _, req := range invalid {
		_, err := f.subscriptions.Create(f.ctx, f.admin, f.spaceID, &req)
		assert.ErrorIs(t, err, response.ErrInvalidInput, req.URL)
	}

	_, err := f.subscriptions.Create(f.ctx, f.member, f.spaceID, &CreateSubscriptionRequest{URL: srv.URL})
	assert.ErrorIs(t, err, response.ErrInsecureOperation)

	created, err := f.subscriptions.Create(f.ctx, f.admin, f.spaceID, &CreateSubscriptionRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, created.Secret, 48)
	assert.Equal(t, "*", created.Events)

	encoded, err := json.Marshal(created)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), created.Secret)
	listed, err := f.subscriptions.List(f.ctx, f.admin, f.spaceID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	encoded, err = json.Marshal(listed)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), created.Secret)

	delivery, err := f.subscriptions.SendTest(f.ctx, f.admin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, delivery.Status)
	require.Equal(t, 1, ep.count())
	assert.Equal(t, domain.EventPing, ep.request(0).event)

	history, err := f.subscriptions.Deliveries(f.ctx, f.admin, created.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = f.subscriptions.Deliveries(f.ctx, f.member, created.ID, 10)
	assert.ErrorIs(t, err, response.ErrInsecureOperation)
	assert.ErrorIs(t, f.subscriptions.Delete(f.ctx, f.admin, "missing"), response.ErrNotFound)
	require.NoError(t, f.subscriptions.Delete(f.ctx, f.admin, created.ID))

	listed, err = f.subscriptions.List(f.ctx, f.admin, f.spaceID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSendTest_UnreachableEndpointReportsFailure(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(t, "http://127.0.0.1:1/hook")

	delivery, err := f.subscriptions.SendTest(f.ctx, f.admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusFailed, delivery.Status)
	assert.NotEmpty(t, delivery.Error)
}
