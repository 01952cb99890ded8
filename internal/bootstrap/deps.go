package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"onlyjobs_server/adapter/out/filter"
	"onlyjobs_server/adapter/out/llm"
	"onlyjobs_server/adapter/out/messaging"
	"onlyjobs_server/adapter/out/persistence"
	"onlyjobs_server/adapter/out/realtime"
	"onlyjobs_server/config"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/core/service/match"
	"onlyjobs_server/core/service/normalize"
	"onlyjobs_server/core/service/pipeline"
	"onlyjobs_server/infra/database"
	"onlyjobs_server/pkg/logger"
	"onlyjobs_server/pkg/snowflake"
)

type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	// Repositories
	JobRepo      out.JobRepository
	PipelineRepo out.PipelineRepository

	// External classifier
	LLMClient *llm.Client

	// Realtime
	ProgressHub      *realtime.ProgressHub
	ProgressProducer *messaging.ProgressProducer

	// Services
	Normalizer *normalize.Normalizer
	Matcher    *match.Matcher
	Tracker    *pipeline.Tracker
	Runner     *pipeline.Runner
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool for health checks)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the adapters)
	logger.Debug("Connecting to database via sqlx...")
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })
	logger.Info("sqlx database connection successful")

	// Redis (progress streaming is degraded without it, not fatal)
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis connection failed: %v", err)
	} else {
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { redisClient.Close() })
	}

	// Repositories
	deps.JobRepo = persistence.NewJobAdapter(sqlDB)
	deps.PipelineRepo = persistence.NewPipelineAdapter(sqlDB)

	// Realtime (SSE) and the Redis progress stream
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	deps.ProgressHub = realtime.NewProgressHub(zlog)

	sinks := []out.ProgressSink{deps.ProgressHub}
	if deps.Redis != nil {
		deps.ProgressProducer = messaging.NewProgressProducer(deps.Redis, zlog)
		sinks = append(sinks, deps.ProgressProducer)
	}

	// LLM Client
	deps.LLMClient = llm.NewClient(llm.ClientConfig{
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	// Normalizer with per-deployment domain sets
	deps.Normalizer = normalize.NewNormalizer(
		cfg.ConsumerMailDomains,
		cfg.HiringPlatformDomains,
		cfg.ATSSubdomainMarkers,
	)

	// Snowflake generator for status history ids
	idGen, err := snowflake.NewGenerator(cfg.NodeID)
	if err != nil {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, nil, err
	}

	// Matcher
	deps.Matcher = match.NewMatcher(
		deps.Normalizer,
		deps.LLMClient,
		deps.LLMClient,
		deps.JobRepo,
		idGen,
		match.Options{
			TitleSimilarityThreshold: cfg.TitleSimilarityThreshold,
			FuzzyExactScore:          cfg.FuzzyExactScore,
			FuzzySubstringScore:      cfg.FuzzySubstringScore,
			FuzzyDomainScore:         cfg.FuzzyDomainScore,
			FuzzyCandidateLimit:      cfg.FuzzyCandidateLimit,
			RecencyWindow:            cfg.RecencyWindow(),
		},
	)

	// Tracker and Runner
	deps.Tracker = pipeline.NewTracker(deps.PipelineRepo, deps.JobRepo, cfg.AutoApproveThreshold)
	deps.Runner = pipeline.NewRunner(
		deps.Tracker,
		deps.Matcher,
		filter.NewRuleBasedDigestFilter(nil, nil),
		multiSink(sinks),
		pipeline.RunnerOptions{
			BatchSize:  cfg.MatchBatchSize,
			BatchPause: cfg.MatchBatchPause,
		},
	)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
