package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/config"
	"github.com/Nurudeenbika/university-crm-backend/internal/delivery/httpd"
	"github.com/Nurudeenbika/university-crm-backend/internal/delivery/ws"
	"github.com/Nurudeenbika/university-crm-backend/internal/notification"
	"github.com/Nurudeenbika/university-crm-backend/internal/presence"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository/memory"
	"github.com/Nurudeenbika/university-crm-backend/internal/service"
	"github.com/Nurudeenbika/university-crm-backend/internal/service/integration"
	"github.com/Nurudeenbika/university-crm-backend/internal/worker"
	"github.com/Nurudeenbika/university-crm-backend/internal/worker/queue"
	"github.com/Nurudeenbika/university-crm-backend/pkg/rabbitmq"
)

type App struct {
	server *http.Server
	logger zerolog.Logger
	config *config.Config
	db     *sql.DB

	// background loops run from Run until Shutdown
	background []func(ctx context.Context) error
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	pool    *worker.WorkerPool
	closers []io.Closer
}

type repositories struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	assignments repository.AssignmentRepository
}

// New wires the service. db may be nil when the memory driver is configured.
func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	a := &App{
		logger: log,
		config: cfg,
		db:     db,
	}

	repos, err := newRepositories(cfg, log, db)
	if err != nil {
		return nil, err
	}

	registry := presence.NewRegistry()
	dispatcher := notification.NewDispatcher(registry, cfg.Notifications.PushTimeout, log.With().Str("component", "dispatcher").Logger())

	notifier, err := a.newNotifier(cfg, log, dispatcher)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	courseService := service.NewCourseService(repos.courses, log)
	enrollmentService := service.NewEnrollmentService(repos.enrollments, repos.assignments, notifier, log)

	var gradeEvents service.GradeEventPublisher
	if cfg.Grading.Consumer.Enabled {
		publisher, err := a.startGradingConsumer(cfg, log, enrollmentService)
		if err != nil {
			a.closeAll()
			return nil, err
		}
		gradeEvents = publisher
	}

	assignmentService := service.NewAssignmentService(
		repos.assignments,
		repos.enrollments,
		courseService,
		enrollmentService,
		gradeEvents,
		notifier,
		log,
	)
	gradebookService := service.NewGradebookService(courseService, repos.enrollments, log)

	handler := httpd.NewHandler(
		courseService,
		enrollmentService,
		assignmentService,
		gradebookService,
		notifier,
		registry,
		log,
	)
	if a.pool != nil {
		handler.SetWorkerStats(a.pool.GetStats)
	}

	wsHandler := ws.NewHandler(registry, ws.Config{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.Notifications.SendBuffer,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, log.With().Str("component", "ws").Logger())

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpd.RequestLogger(log))
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// long-lived, so kept out of the request timeout
	router.Get("/ws", wsHandler.ServeHTTP)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		handler.RegisterRoutes(r)
	})

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

func newRepositories(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*repositories, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		mem := memory.Open()
		return &repositories{
			enrollments: memory.NewEnrollmentRepository(mem),
			courses:     memory.NewCourseRepository(mem),
			assignments: memory.NewAssignmentRepository(mem),
		}, nil
	case config.DriverPostgres:
		if db == nil {
			return nil, errors.New("postgres driver configured without a database connection")
		}
		return &repositories{
			enrollments: repository.NewEnrollmentRepository(db, log),
			courses:     repository.NewCourseRepository(db, log),
			assignments: repository.NewAssignmentRepository(db, log),
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// newNotifier returns the dispatcher itself for local fan-out, or a bus
// notifier plus a relay that feeds this instance's dispatcher.
func (a *App) newNotifier(cfg *config.Config, log zerolog.Logger, dispatcher *notification.Dispatcher) (service.Notifier, error) {
	var bus notification.Bus

	switch cfg.Notifications.Fanout {
	case config.FanoutLocal:
		return dispatcher, nil
	case config.FanoutRabbitMQ:
		b, err := integration.NewRabbitMQBus(cfg.RabbitMQ.URL, cfg.RabbitMQ.EventsExchange, log)
		if err != nil {
			return nil, err
		}
		bus = b
	case config.FanoutRedis:
		b, err := integration.NewRedisBus(
			context.Background(),
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.Channel,
			log,
		)
		if err != nil {
			return nil, err
		}
		bus = b
	default:
		return nil, fmt.Errorf("unknown notifications fanout %q", cfg.Notifications.Fanout)
	}

	a.closers = append(a.closers, bus)

	origin := uuid.NewString()
	relay := notification.NewRelay(bus, dispatcher, origin, log.With().Str("component", "relay").Logger())
	a.background = append(a.background, relay.Run)

	log.Info().Str("fanout", cfg.Notifications.Fanout).Str("origin", origin).Msg("Cross-instance notifications enabled")

	return notification.NewBusNotifier(bus, relay, log), nil
}

// startGradingConsumer declares the grading topology, prepares the consumer
// and worker pool, and returns the publisher used by the grading workflow.
func (a *App) startGradingConsumer(cfg *config.Config, log zerolog.Logger, recomputer queue.Recomputer) (*integration.GradingPublisher, error) {
	consumerCfg := cfg.Grading.Consumer
	log = log.With().Str("component", "grading").Logger()

	publisher, err := integration.NewGradingPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.GradingExchange, consumerCfg.RoutingKey, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher)

	conn, err := rabbitmq.NewConnection(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn)

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		return nil, err
	}
	if err := rabbitmq.DeclareExchange(channel, cfg.RabbitMQ.GradingExchange, amqp.ExchangeDirect); err != nil {
		return nil, err
	}
	if _, err := rabbitmq.DeclareBoundQueue(channel, consumerCfg.Queue, cfg.RabbitMQ.GradingExchange, consumerCfg.RoutingKey); err != nil {
		return nil, err
	}

	consumer := queue.NewRabbitMQConsumer(channel, consumerCfg.Queue, "crm-grading-"+uuid.NewString(), consumerCfg.Prefetch, log)
	a.closers = append(a.closers, consumer)

	a.pool = worker.NewWorkerPool(consumerCfg.Workers, log)
	gradingWorker := worker.NewGradingWorker(consumer, queue.NewMessageHandler(recomputer, log), a.pool, log)
	a.background = append(a.background, gradingWorker.Run)

	return publisher, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.pool != nil {
		a.pool.Start()
	}

	for _, loop := range a.background {
		loop := loop
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := loop(ctx); err != nil {
				a.logger.Error().Err(err).Msg("Background loop stopped")
			}
		}()
	}

	a.logger.Info().Msgf("Starting university CRM service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down university CRM service...")

	err := a.server.Shutdown(ctx)

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.pool != nil {
		a.pool.Stop()
	}

	a.closeAll()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	return err
}

// closeAll releases external clients in reverse order of creation.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close client")
		}
	}
	a.closers = nil
}
