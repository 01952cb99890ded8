package bootstrap

import (
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	apihttp "onlyjobs_server/adapter/in/http"
	"onlyjobs_server/config"
	"onlyjobs_server/pkg/logger"
)

// NewAPI builds the fiber app with all routes wired.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "onlyjobs-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.Error("Failed to initialize dependencies: %v", err)
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             10 * 1024 * 1024,
		StreamRequestBody:     true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Local desktop app talks to us from its own origin
	allowOrigins := strings.Join([]string{
		"http://localhost:3000",
		"http://localhost:5173",
	}, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	// Health check
	healthHandler := apihttp.NewHealthHandler(deps.DB, deps.Redis)
	healthHandler.Register(app)

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	api := app.Group("/api")

	// SSE progress stream
	sseHandler := apihttp.NewSSEHandler(deps.ProgressHub, zlog)
	sseHandler.Register(api)

	// Job board
	jobHandler := apihttp.NewJobHandler(deps.JobRepo)
	jobHandler.Register(api)

	// Pipeline state and ingestion
	pipelineHandler := apihttp.NewPipelineHandler(deps.Tracker, deps.Runner, zlog)
	pipelineHandler.Register(api)

	return app, cleanup, nil
}
