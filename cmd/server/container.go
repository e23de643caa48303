// Composition root. Owns infrastructure (DB, Redis, AWS clients) and composes
// the OTP bounded-context container.
package main

import (
	"context"

	"github.com/Abraxas-365/otpguard/pkg/config"
	"github.com/Abraxas-365/otpguard/pkg/jobx"
	"github.com/Abraxas-365/otpguard/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/notifx"
	"github.com/Abraxas-365/otpguard/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/otpguard/pkg/notifx/notifxses"
	"github.com/Abraxas-365/otpguard/pkg/notifx/notifxsns"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpcontainer"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB       *sqlx.DB
	Redis    *redis.Client
	Notifier *notifx.Client
	Jobs     *jobx.Client

	// Bounded-context containers
	OTP *otpcontainer.Container
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure: DB, Redis, notifications, jobs
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database
	if c.Config.Database.Storage != "memory" {
		db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
		if err != nil {
			logx.Fatalf("Failed to connect to database: %v", err)
		}
		db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
		db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
		db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
		c.DB = db
		logx.Info("  ✅ Database connected")
	}

	// 2. Redis
	if c.Config.Redis.Store != "memory" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Address(),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
			logx.Fatalf("Failed to connect to Redis: %v (set RATELIMIT_STORE=memory to run without it)", err)
		}
		logx.Info("  ✅ Redis connected")
	}

	// 3. Notifications
	c.initNotifier()

	// 4. Background jobs
	var queue jobx.Queue
	if c.Redis != nil {
		queue = jobxredis.NewRedisQueue(c.Redis)
		logx.Info("  ✅ Redis job queue configured")
	} else {
		queue = jobx.NewMemoryQueue()
		logx.Warn("  ⚠️  Using in-memory job queue")
	}
	jc := c.Config.Jobx
	c.Jobs = jobx.NewClient(queue,
		jobx.WithQueues(jc.Queues...),
		jobx.WithConcurrency(jc.Concurrency),
		jobx.WithPollInterval(jc.PollInterval),
		jobx.WithShutdownTimeout(jc.ShutdownTimeout),
		jobx.WithDequeueTimeout(jc.DequeueTimeout),
		jobx.WithDefaultRetryDelay(jc.DefaultRetryDelay),
	)

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initNotifier() {
	nc := c.Config.Notifx
	console := notifxconsole.NewConsoleProvider()

	var awsCfg *aws.Config
	loadAWS := func() aws.Config {
		if awsCfg == nil {
			cfg, err := awsConfig.LoadDefaultConfig(context.TODO(), awsConfig.WithRegion(nc.AWSRegion))
			if err != nil {
				logx.Fatalf("Unable to load AWS SDK config: %v", err)
			}
			awsCfg = &cfg
		}
		return *awsCfg
	}

	var smsSender notifx.SMSSender = console
	switch nc.SMSProvider {
	case "sns":
		smsSender = notifxsns.NewSNSProvider(sns.NewFromConfig(loadAWS()), nc.SMSCountryCode, nc.SMSSenderID)
		logx.Infof("  ✅ SNS SMS provider configured (region: %s)", nc.AWSRegion)
	case "console":
		logx.Warn("  ⚠️  Using console SMS provider (codes are logged, not sent)")
	default:
		logx.Fatalf("Unknown NOTIFX_SMS_PROVIDER: %s (use 'console' or 'sns')", nc.SMSProvider)
	}

	var emailSender notifx.EmailSender = console
	switch nc.EmailProvider {
	case "ses":
		emailSender = notifxses.NewSESProvider(ses.NewFromConfig(loadAWS()), nc.FromAddress)
		logx.Infof("  ✅ SES email provider configured (from: %s)", nc.FromAddress)
	case "console":
		logx.Info("  ✅ Console email provider configured")
	default:
		logx.Fatalf("Unknown NOTIFX_EMAIL_PROVIDER: %s (use 'console' or 'ses')", nc.EmailProvider)
	}

	c.Notifier = notifx.NewClient(smsSender, emailSender)
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	deps := otpcontainer.Deps{
		DB:       c.DB,
		Cfg:      c.Config,
		Notifier: c.Notifier,
		Jobs:     c.Jobs,
	}
	if c.Redis != nil {
		deps.Redis = c.Redis
	}

	otpc, err := otpcontainer.New(deps)
	if err != nil {
		logx.Fatalf("Failed to initialize OTP module: %v", err)
	}
	if err := otpc.RegisterJobs(); err != nil {
		logx.Fatalf("Failed to register OTP jobs: %v", err)
	}
	c.OTP = otpc
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartBackgroundServices runs the job worker until ctx is cancelled.
func (c *Container) StartBackgroundServices(ctx context.Context) error {
	logx.Info("🔄 Starting background services...")
	return c.Jobs.Start(ctx)
}

// Ping checks the backing stores that are configured.
func (c *Container) Ping(ctx context.Context) map[string]error {
	checks := map[string]error{}
	if c.DB != nil {
		checks["db"] = c.DB.PingContext(ctx)
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.Ping(ctx).Err()
	}
	return checks
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
	_ = logx.Sync()
}
