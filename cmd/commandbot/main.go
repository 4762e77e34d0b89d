package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/commandbot/domain/diagnostic"
	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/api"
	"github.com/open-teleop/commandbot/pkg/classifier"
	"github.com/open-teleop/commandbot/pkg/config"
	customlog "github.com/open-teleop/commandbot/pkg/log"
	"github.com/open-teleop/commandbot/pkg/processing"
	"github.com/open-teleop/commandbot/pkg/telemetry"
	"github.com/open-teleop/commandbot/pkg/zeromq"
	"github.com/open-teleop/commandbot/services"
)

// defaultWaitTimeout bounds waiting REP requests when the classifier has no timeout
const defaultWaitTimeout = 30 * time.Second

func main() {
	configDir := flag.String("config-dir", "./config", "directory containing "+config.ConfigFileName)
	flag.Parse()

	cfg, err := config.LoadBootstrapConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v\n", err)
	}

	appLogger, err := customlog.New(customlog.Options{
		Level:      cfg.Logging.Level,
		Dir:        cfg.Logging.LogPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	appLogger.Infof("Loaded configuration from %s", *configDir)

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		appLogger.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Transport
	zmqService, err := zeromq.NewZeroMQService(cfg.ZeroMQ, appLogger.WithField("component", "zeromq"))
	if err != nil {
		appLogger.Fatalf("Failed to initialize ZeroMQ service: %v", err)
	}
	publisher := zeromq.NewCommandPublisher(zmqService, cfg.ZeroMQ, appLogger)

	// Motion hold
	controller := motion.NewController(publisher, cfg.TickInterval(), appLogger.WithField("component", "motion"))

	cls, err := classifier.New(cfg, appLogger.WithField("component", "classifier"))
	if err != nil {
		appLogger.Fatalf("Failed to initialize classifier: %v", err)
	}

	commandService, err := services.NewCommandService(cls, controller, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize command service: %v", err)
	}
	commandService.SetCodePublisher(publisher)

	// Input pipeline
	registry := processing.NewSourceRegistry(appLogger)
	for _, source := range []string{processing.SourceZeroMQ, processing.SourceRequest, processing.SourceHTTP, processing.SourceWebSocket} {
		registry.Register(source)
	}
	director := processing.NewInputDirector(appLogger.WithField("component", "processing"), registry, &processing.DirectorOptions{
		Workers:            cfg.Processing.Workers,
		QueueSize:          cfg.Processing.QueueSize,
		MaxInputsPerSecond: cfg.Processing.MaxInputsPerSecond,
		Burst:              cfg.Processing.Burst,
	})
	director.SetProcessor(func(ctx context.Context, job *processing.Job) (interface{}, error) {
		outcome, err := commandService.HandleInput(ctx, job.Text)
		return outcome, err
	})
	director.SetResultHandler(processing.NewLoggingResultHandler(appLogger).CreateHandlerFunc())
	director.Start()

	waitTimeout := cfg.ClassifierTimeout()
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	zmqService.SetInputHandler(func(text string) error {
		_, err := director.Submit(processing.SourceZeroMQ, text, nil)
		return err
	})
	zeromq.RegisterRequestHandlers(zmqService, director, commandService, waitTimeout+5*time.Second, appLogger)
	if err := zmqService.Start(); err != nil {
		appLogger.Fatalf("Failed to start ZeroMQ service: %v", err)
	}

	controllerCtx, stopController := context.WithCancel(context.Background())
	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		controller.Run(controllerCtx)
	}()

	diagnosticService := diagnostic.NewDiagnosticService(controller, director, commandService)

	// HTTP
	app := fiber.New(fiber.Config{
		AppName:      "commandbot",
		ErrorHandler: customErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "commandbot",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	apiGroup := app.Group("/api")
	apiGroup.Get("/diagnostics", diagnosticService.GetMetricsHandler)

	api.RegisterCommandRoutes(app, director, commandService, appLogger)
	api.RegisterConfigRoutes(app, cfg, appLogger)
	api.RegisterWebSocketRoutes(app, director, appLogger)

	go func() {
		appLogger.Infof("Server starting on port %d", cfg.Server.HTTPPort)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.HTTPPort)); err != nil {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Infof("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop accepting inputs, then leave the robot stopped before the sockets go away
	director.Stop()
	if err := commandService.Stop(ctx); err != nil {
		appLogger.Errorf("Failed to stop robot on shutdown: %v", err)
	}
	stopController()
	<-controllerDone
	zmqService.Stop()

	if err := shutdownTracing(ctx); err != nil {
		appLogger.Warnf("Failed to flush traces: %v", err)
	}

	appLogger.Infof("Server exited properly")
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	// Default 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
