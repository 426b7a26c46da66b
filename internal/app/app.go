// Package app wires configuration, storage, services and background workers
// into one container shared by the server and the task CLI.
package app

import (
	"context"
	"fmt"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/internal/services/webhook"
	"github.com/charmverse/governance/internal/utils"
	"github.com/charmverse/governance/pkg/logger"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB

	Hub       *services.EventHub
	Queue     services.TaskQueue
	Worker    *services.Worker
	Scheduler *services.Scheduler

	Auth          *services.AuthService
	Users         *services.UserService
	SystemConfigs *services.SystemConfigService
	SystemLogs    *services.SystemLogService
	Members       *services.SpaceRoleService
	Spaces        *services.SpaceService
	Roles         *services.RoleService
	Bounties      *services.BountyService
	Votes         *services.VoteService
	Proposals     *services.ProposalService
	Evaluations   *services.EvaluationService
	Email         *services.EmailService

	Dispatcher    *webhook.Dispatcher
	Deliverer     *webhook.Deliverer
	Subscriptions *webhook.SubscriptionService
}

// New opens and migrates the database, then builds every service.
func New(cfg *config.Config) (*App, error) {
	db, err := models.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := models.SeedDefaultData(db, cfg.Scheduler.LogRetentionDays); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}
	return NewWithDB(cfg, db)
}

// NewWithDB builds the container on an already migrated database.
func NewWithDB(cfg *config.Config, db *gorm.DB) (*App, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)

	a := &App{
		Config: cfg,
		DB:     db,
		Hub:    services.NewEventHub(),
		Queue:  services.NewTaskQueue(cfg),
	}

	a.Dispatcher = webhook.NewDispatcher(db, a.Queue)
	a.Deliverer = webhook.NewDeliverer(db, &cfg.Webhook)
	events := services.NewEventBus(a.Hub, a.Dispatcher)

	a.SystemConfigs = services.NewSystemConfigService(db)
	a.SystemLogs = services.NewSystemLogService(db, a.SystemConfigs)
	a.Auth = services.NewAuthService(db, &cfg.JWT, a.SystemConfigs)
	a.Users = services.NewUserService(db)
	a.Members = services.NewSpaceRoleService(db)
	a.Spaces = services.NewSpaceService(db, a.Members)
	a.Roles = services.NewRoleService(db, a.Members)
	a.Bounties = services.NewBountyService(db, a.Members)
	a.Email = services.NewEmailService(db, cfg.Email)
	a.Votes = services.NewVoteService(db, a.Members, events)
	a.Proposals = services.NewProposalService(db, a.Members, a.Votes, events)
	a.Evaluations = services.NewEvaluationService(db, a.Members, a.Votes, events, a.Email)
	a.Votes.SetOnClose(a.Evaluations.HandleVoteClosed)
	a.Subscriptions = webhook.NewSubscriptionService(db, a.Members, a.Dispatcher, a.Deliverer)

	if q, ok := a.Queue.(*services.SyncQueue); ok {
		q.Handle(webhook.TaskDeliver, a.Deliverer.Process)
	}
	if a.Queue.IsAsync() {
		a.Worker = services.NewWorker(&cfg.Redis)
		if a.Worker != nil {
			a.Worker.Handle(webhook.TaskDeliver, a.Deliverer.Process)
		}
	}

	a.Scheduler = services.NewScheduler(db)
	for _, task := range a.tasks() {
		if err := a.Scheduler.Register(task); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) tasks() []services.ScheduledTask {
	sc := a.Config.Scheduler
	return []services.ScheduledTask{
		services.CloseExpiredVotesTask(sc.CloseVotesSpec, a.Votes, a.Evaluations),
		services.CleanupSystemLogsTask(sc.LogCleanupSpec, a.SystemLogs),
		webhook.RetryFailedTask(sc.RetryWebhookSpec, a.Dispatcher, a.Config.Webhook.MaxRetry),
	}
}

// Start creates the first admin and launches the worker and the scheduler.
func (a *App) Start(ctx context.Context) error {
	if err := a.Auth.CreateAdminIfNotExists(ctx, a.Config.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}
	if a.Worker != nil {
		if err := a.Worker.Start(); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}
	if a.Config.Scheduler.Enabled {
		a.Scheduler.Start()
	}
	return nil
}

// Close stops background work and releases the queue and the database.
func (a *App) Close() {
	if a.Config.Scheduler.Enabled {
		a.Scheduler.Stop()
	}
	if a.Worker != nil {
		a.Worker.Stop()
	}
	if err := a.Queue.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close task queue")
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
