// Package container wires the verification backend from configuration and
// owns the lifecycle of its connections.
package container

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"carbon-scribe/project-portal/verification-backend/internal/assignment"
	"carbon-scribe/project-portal/verification-backend/internal/audit"
	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/config"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/notifications"
	"carbon-scribe/project-portal/verification-backend/internal/notifications/websocket"
	"carbon-scribe/project-portal/verification-backend/internal/scheduler"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
	"carbon-scribe/project-portal/verification-backend/pkg/clock"
)

// JobRebalance is the name of the recurring workload rebalance
const JobRebalance = "verification.rebalance"

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB          *gorm.DB
	DirectoryDB *sqlx.DB
	MongoClient *mongo.Client

	// Collaborators
	Users    directory.UserDirectory
	Projects directory.ProjectDirectory
	Audit    audit.Store
	Sockets  *websocket.Manager
	Tokens   *auth.TokenIssuer

	// Services
	Notifications *notifications.Service
	Scheduler     *scheduler.Manager
	Workflow      *verification.Workflow
	Assignment    *assignment.Service
}

// New connects to the databases and builds every service
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{Config: cfg, Logger: logger}
	if err := c.initDatabases(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, err
	}
	if err := c.initAudit(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, err
	}
	if err := c.initNotifications(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, err
	}
	c.initServices()

	logger.Info("Container initialized",
		zap.String("audit_backend", cfg.Audit.Backend),
		zap.Bool("email", cfg.Notifications.EmailEnabled),
		zap.Bool("sms", cfg.Notifications.SMSEnabled))
	return c, nil
}

func (c *Container) initDatabases(ctx context.Context) error {
	dbCfg := c.Config.Database
	dsn := dbCfg.GetDatabaseURL()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(dbCfg.MaxConnections)
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(dbCfg.MaxLifetime)
	c.DB = db

	c.DirectoryDB, err = sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect directory database: %w", err)
	}
	c.DirectoryDB.SetMaxOpenConns(dbCfg.MaxConnections)
	c.DirectoryDB.SetMaxIdleConns(dbCfg.MaxIdleConns)

	c.Users = directory.NewUserRepository(c.DirectoryDB)
	c.Projects = directory.NewProjectRepository(c.DirectoryDB)

	if dbCfg.AutoMigrate {
		for _, migrate := range []func(*gorm.DB) error{
			verification.AutoMigrate,
			scheduler.AutoMigrate,
			notifications.AutoMigrate,
		} {
			if err := migrate(db); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Container) initAudit(ctx context.Context) error {
	if c.Config.Audit.Backend != config.AuditBackendMongo {
		if c.Config.Database.AutoMigrate {
			if err := audit.AutoMigrate(c.DB); err != nil {
				return err
			}
		}
		c.Audit = audit.NewGormStore(c.DB)
		return nil
	}

	mongoCfg := c.Config.Mongo
	connectCtx, cancel := context.WithTimeout(ctx, mongoCfg.ConnectTimeout)
	defer cancel()
	client, collection, err := audit.ConnectMongo(connectCtx, mongoCfg.URI, mongoCfg.Database, mongoCfg.AuditCollection)
	if err != nil {
		return err
	}
	c.MongoClient = client
	c.Audit = audit.NewMongoStore(collection)
	return nil
}

func (c *Container) initNotifications(ctx context.Context) error {
	cfg := c.Config.Notifications
	c.Sockets = websocket.NewManager(c.Logger, c.Config.Server.AllowedOrigins)

	channels := []notifications.Channel{notifications.NewWebSocketChannel(c.Sockets)}
	if cfg.EmailEnabled || cfg.SMSEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return fmt.Errorf("failed to load aws config: %w", err)
		}
		if cfg.EmailEnabled {
			channels = append(channels, notifications.NewEmailChannel(sesv2.NewFromConfig(awsCfg), cfg.EmailFrom))
		}
		if cfg.SMSEnabled {
			channels = append(channels, notifications.NewSMSChannel(sns.NewFromConfig(awsCfg), cfg.SMSKinds))
		}
	}

	c.Notifications = notifications.NewService(notifications.NewRepository(c.DB), c.Users, c.Logger, channels...)
	return nil
}

func (c *Container) initServices() {
	clk := clock.System()
	schedCfg := c.Config.Scheduler
	c.Scheduler = scheduler.NewManager(scheduler.NewRepository(c.DB), clk, c.Logger, scheduler.Config{
		PollInterval: schedCfg.PollInterval,
		BatchSize:    schedCfg.BatchSize,
		MaxAttempts:  schedCfg.MaxAttempts,
		RetryDelay:   schedCfg.RetryDelay,
		JobTimeout:   schedCfg.JobTimeout,
	})

	c.Workflow = verification.NewWorkflow(verification.Dependencies{
		Repo:      verification.NewRepository(c.DB),
		Users:     c.Users,
		Projects:  c.Projects,
		Notifier:  c.Notifications,
		Scheduler: c.Scheduler,
		Audit:     c.Audit,
		Trail:     c.Audit,
		Clock:     clk,
		Logger:    c.Logger,
	})

	c.Assignment = assignment.NewService(c.Users, c.Projects, c.Workflow, clk, c.Logger, assignment.Options{
		DefaultCriteria:  DefaultCriteria(c.Config.Verification),
		StatsConcurrency: c.Config.Verification.StatsConcurrency,
	})
	c.Workflow.SetAssigner(c.Assignment)

	c.Tokens = auth.NewTokenIssuer(c.Config.Security.JWTSecret, c.Config.Security.TokenTTL)
}

// DefaultCriteria maps the verification settings to auto-assignment criteria
func DefaultCriteria(cfg config.VerificationConfig) assignment.Criteria {
	return assignment.Criteria{
		RequireSpecialty: cfg.RequireSpecialty,
		MaxWorkload:      cfg.MaxWorkload,
		PriorityBoost:    cfg.PriorityBoost,
	}
}

// RegisterJobs registers the deadline callbacks and the recurring rebalance
// with the scheduler. Only processes that run the scheduler call it.
func (c *Container) RegisterJobs() error {
	c.Workflow.RegisterJobs(c.Scheduler.Handle)

	schedule := c.Config.Verification.RebalanceSchedule
	if schedule == "" {
		return nil
	}
	if err := scheduler.ValidateCronExpression(schedule); err != nil {
		return fmt.Errorf("invalid rebalance schedule: %w", err)
	}
	maxDiff := c.Config.Verification.RebalanceMaxDiff
	return c.Scheduler.AddRecurring(JobRebalance, schedule, func(ctx context.Context) error {
		_, err := c.Assignment.RebalanceWorkload(ctx, auth.SystemPrincipal(), maxDiff)
		return err
	})
}

// Shutdown releases every connection the container opened
func (c *Container) Shutdown(ctx context.Context) {
	if c.Sockets != nil {
		c.Sockets.Close()
	}
	if c.MongoClient != nil {
		if err := c.MongoClient.Disconnect(ctx); err != nil {
			c.Logger.Warn("Failed to disconnect mongo", zap.Error(err))
		}
	}
	if c.DirectoryDB != nil {
		if err := c.DirectoryDB.Close(); err != nil {
			c.Logger.Warn("Failed to close directory database", zap.Error(err))
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				c.Logger.Warn("Failed to close database", zap.Error(err))
			}
		}
	}
}
