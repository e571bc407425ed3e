package bootstrap

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sanskarm7/JobCATGmail/adapter/out/llm"
	"github.com/sanskarm7/JobCATGmail/adapter/out/memory"
	"github.com/sanskarm7/JobCATGmail/adapter/out/messaging"
	"github.com/sanskarm7/JobCATGmail/adapter/out/mongodb"
	"github.com/sanskarm7/JobCATGmail/adapter/out/persistence"
	"github.com/sanskarm7/JobCATGmail/adapter/out/provider/gmail"
	"github.com/sanskarm7/JobCATGmail/adapter/out/realtime"
	"github.com/sanskarm7/JobCATGmail/config"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/core/service/application"
	"github.com/sanskarm7/JobCATGmail/core/service/auth"
	"github.com/sanskarm7/JobCATGmail/core/service/classify"
	"github.com/sanskarm7/JobCATGmail/core/service/ingest"
	"github.com/sanskarm7/JobCATGmail/core/service/prefilter"
	"github.com/sanskarm7/JobCATGmail/core/service/reconcile"
	"github.com/sanskarm7/JobCATGmail/infra/database"
	"github.com/sanskarm7/JobCATGmail/pkg/crypto"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// Dependencies is the object graph shared by the API and the worker.
// Every external store is optional; a process-local adapter stands in when it is absent.
type Dependencies struct {
	Config *config.Config

	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	Applications out.ApplicationRepository
	Mailboxes    out.MailboxConnectionRepository
	Checkpoints  out.CheckpointRepository
	SyncRuns     out.SyncRunRepository
	Locker       out.SyncLocker
	OAuthStates  out.OAuthStateStore

	// Messaging. MessageProducer is nil until a queue is available.
	MessageProducer out.MessageProducer

	// Realtime. FeedPusher is where sync events are published; with Redis it is
	// the cross-process relay, otherwise the local SSE adapter.
	Realtime   *realtime.SSEAdapter
	Relay      *realtime.RedisRelay
	FeedPusher realtime.Pusher
	Sinks      out.SinkFactory

	// Services
	MailboxService     *auth.MailboxService
	SyncService        *ingest.SyncService
	ApplicationService *application.Service
}

func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, nil, err
	}

	// Postgres
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		deps.DB = pool
		cleanups = append(cleanups, pool.Close)

		sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect postgres (sqlx): %w", err)
		}
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })

		if err := persistence.Migrate(ctx, sqlDB); err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("[Bootstrap] postgres connected")
	}

	// Redis
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL, nil)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.Redis = client
		cleanups = append(cleanups, func() { client.Close() })
		logger.Info("[Bootstrap] redis connected")
	}

	// MongoDB
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.MongoDB = client
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(ctx)
		})

		apps := mongodb.NewApplicationAdapter(client, cfg.MongoDBName)
		if err := apps.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("[Bootstrap] failed to ensure mongo indexes")
		}
		deps.Applications = apps
		logger.Info("[Bootstrap] mongodb connected (db=%s)", cfg.MongoDBName)
	} else {
		deps.Applications = memory.NewApplicationStore()
		logger.Warn("[Bootstrap] MONGODB_URL not set, applications are kept in memory")
	}

	if deps.SQLDB != nil {
		deps.Mailboxes = persistence.NewMailboxAdapter(deps.SQLDB)
		deps.Checkpoints = persistence.NewCheckpointAdapter(deps.SQLDB)
		deps.SyncRuns = persistence.NewSyncRunAdapter(deps.SQLDB)
	} else {
		deps.Mailboxes = memory.NewMailboxConnectionStore()
		deps.Checkpoints = memory.NewCheckpointStore()
		deps.SyncRuns = memory.NewSyncRunStore()
		logger.Warn("[Bootstrap] DATABASE_URL not set, mailboxes and checkpoints are kept in memory")
	}

	deps.Realtime = realtime.NewSSEAdapter(logger.Default().Zerolog())
	deps.FeedPusher = deps.Realtime
	if deps.Redis != nil {
		deps.Locker = persistence.NewRedisSyncLocker(deps.Redis, cfg.SyncLockTTL)
		deps.OAuthStates = persistence.NewRedisOAuthStateStore(deps.Redis)
		deps.MessageProducer = messaging.NewRedisProducer(deps.Redis)
		deps.Relay = realtime.NewRedisRelay(deps.Redis)
		deps.FeedPusher = deps.Relay
	} else {
		deps.Locker = memory.NewLocker()
		deps.OAuthStates = memory.NewOAuthStateStore()
	}
	deps.Sinks = realtime.SinkFactory(deps.FeedPusher)

	// Mailbox OAuth
	cipher, err := newCipher(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	oauthConfig := auth.NewGoogleConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	deps.MailboxService = auth.NewMailboxService(deps.Mailboxes, cipher, oauthConfig)
	deps.MailboxService.SetRealtime(deps.FeedPusher)
	if deps.MessageProducer != nil {
		deps.MailboxService.SetMessageProducer(deps.MessageProducer)
	}

	// Classifier
	var llmClient out.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llmClient = llm.NewClient(llm.ClientConfig{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.LLMModel,
			MaxRetries:   cfg.LLMMaxRetries,
			BreakerTrips: cfg.LLMBreakerTrips,
		})
	} else {
		logger.Warn("[Bootstrap] OPENAI_API_KEY not set, every candidate gets the safe default judgment")
	}
	classifier := classify.New(llmClient,
		classify.WithTokenBudget(cfg.LLMTokenBudget),
		classify.WithCallTimeout(time.Duration(cfg.LLMTimeoutSec)*time.Second),
	)

	deps.SyncService = ingest.NewSyncService(ingest.Deps{
		Applications: deps.Applications,
		Checkpoints:  deps.Checkpoints,
		Runs:         deps.SyncRuns,
		Mailbox:      gmail.NewProvider(),
		Credentials:  deps.MailboxService,
		Classifier:   classifier,
		Locker:       deps.Locker,
	}, syncConfig(policy))

	deps.ApplicationService = application.NewService(deps.Applications)

	return deps, cleanup, nil
}

// UseProducer installs a job producer when none was configured, e.g. the
// in-process pool when running without Redis.
func (d *Dependencies) UseProducer(p out.MessageProducer) {
	if d.MessageProducer != nil {
		return
	}
	d.MessageProducer = p
	d.MailboxService.SetMessageProducer(p)
}

func newCipher(cfg *config.Config) (*crypto.Encryptor, error) {
	key := []byte(cfg.EncryptionKey)
	if len(key) == 0 {
		// tokens sealed with a random key do not survive a restart
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate encryption key: %w", err)
		}
		logger.Warn("[Bootstrap] TOKEN_ENCRYPTION_KEY not set, using an ephemeral key")
	}
	return crypto.NewEncryptor(key)
}

// syncConfig applies the policy file on top of the pipeline defaults.
func syncConfig(p *config.Policy) ingest.Config {
	cfg := ingest.DefaultConfig()
	if p == nil {
		return cfg
	}
	if p.LookbackDays > 0 {
		cfg.DefaultLookbackDays = p.LookbackDays
	}
	if p.MaxMessages > 0 {
		cfg.MaxMessages = p.MaxMessages
	}
	if p.ClassifyConcurrency > 0 {
		cfg.Concurrency = p.ClassifyConcurrency
	}
	pol := reconcile.DefaultPolicy()
	if p.CompanyMatchThreshold > 0 {
		pol.CompanyMatchThreshold = p.CompanyMatchThreshold
	}
	if p.KeywordMatchThreshold > 0 {
		pol.KeywordMatchThreshold = p.KeywordMatchThreshold
	}
	cfg.Policy = pol
	cfg.Prefilter = prefilter.Options{
		ExtraStrictPhrases: p.Prefilter.StrictPhrases,
		ExtraATSDomains:    p.Prefilter.ATSDomains,
		ExtraKeywords:      p.Prefilter.Keywords,
	}
	return cfg
}
