package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	cancelAppointmentHandler "github.com/m04kA/AppointmentService/internal/api/handlers/cancel_appointment"
	createAppointmentHandler "github.com/m04kA/AppointmentService/internal/api/handlers/create_appointment"
	getAppointmentHandler "github.com/m04kA/AppointmentService/internal/api/handlers/get_appointment"
	getAvailableSlotsHandler "github.com/m04kA/AppointmentService/internal/api/handlers/get_available_slots"
	listAppointmentsHandler "github.com/m04kA/AppointmentService/internal/api/handlers/list_appointments"
	updateAppointmentStatusHandler "github.com/m04kA/AppointmentService/internal/api/handlers/update_appointment_status"
	"github.com/m04kA/AppointmentService/internal/api/handlers"
	"github.com/m04kA/AppointmentService/internal/api/middleware"
	"github.com/m04kA/AppointmentService/internal/config"
	appointmentRepo "github.com/m04kA/AppointmentService/internal/infra/storage/appointment"
	catalogClient "github.com/m04kA/AppointmentService/internal/integrations/catalog"
	"github.com/m04kA/AppointmentService/internal/notify"
	"github.com/m04kA/AppointmentService/internal/scheduler"
	appointmentsService "github.com/m04kA/AppointmentService/internal/service/appointments"
	createAppointmentUC "github.com/m04kA/AppointmentService/internal/usecase/create_appointment"
	getAvailableSlotsUC "github.com/m04kA/AppointmentService/internal/usecase/get_available_slots"
	"github.com/m04kA/AppointmentService/migrations"
	"github.com/m04kA/AppointmentService/pkg/dbmetrics"
	"github.com/m04kA/AppointmentService/pkg/joblock"
	"github.com/m04kA/AppointmentService/pkg/logger"
	"github.com/m04kA/AppointmentService/pkg/metrics"
	"github.com/m04kA/AppointmentService/pkg/migrator"
	"github.com/m04kA/AppointmentService/pkg/txmanager"
	"github.com/m04kA/AppointmentService/pkg/types"
)

func main() {
	configPath := "config.toml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	log, err := logger.New(cfg.Logs.File, cfg.Logs.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("Starting AppointmentService...")
	log.Info("Configuration loaded from %s", configPath)

	// Инициализируем метрики (если включены)
	var metricsCollector *metrics.Metrics
	stopMetricsCh := make(chan struct{})

	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(cfg.Metrics.ServiceName)
		log.Info("Metrics enabled at %s", cfg.Metrics.Path)
	}

	// Подключаемся к базе данных
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Настраиваем connection pool
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database: %v", err)
	}
	log.Info("Successfully connected to database (host=%s, port=%d, db=%s)",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	if cfg.Database.AutoMigrate {
		m, err := migrator.New(db, migrations.FS, ".", log)
		if err != nil {
			log.Fatal("Failed to initialize migrator: %v", err)
		}
		if err := m.Run(context.Background()); err != nil {
			log.Fatal("Failed to apply migrations: %v", err)
		}
	}

	// Без метрик обёртка работает как обычный *sql.DB
	var wrappedDB *dbmetrics.DB
	if cfg.Metrics.Enabled {
		wrappedDB = dbmetrics.WrapWithDefault(db, metricsCollector, cfg.Metrics.ServiceName, stopMetricsCh)
		log.Info("Database metrics collection started")
	} else {
		wrappedDB = dbmetrics.Wrap(db, nil, cfg.Metrics.ServiceName)
	}

	txMgr := txmanager.NewTransactionManager(wrappedDB)
	appointmentRepository := appointmentRepo.NewRepository(wrappedDB)

	// Инициализируем интеграционных клиентов
	catalog := catalogClient.NewClient(
		cfg.Catalog.URL,
		time.Duration(cfg.Catalog.Timeout)*time.Second,
		log,
	)
	log.Info("Catalog client initialized (url=%s, timeout=%ds)", cfg.Catalog.URL, cfg.Catalog.Timeout)

	// Отправка писем
	var emailSender notify.EmailSender
	switch cfg.Notifications.Provider {
	case "sendgrid":
		sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.Notifications.SendGridAPIKey,
			FromEmail: cfg.Notifications.FromEmail,
			FromName:  cfg.Notifications.FromName,
		}, log)
		if sg == nil {
			log.Fatal("SendGrid provider selected but SENDGRID_API_KEY is empty")
		}
		emailSender = sg
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Notifications.SESRegion))
		if err != nil {
			log.Fatal("Failed to load AWS config: %v", err)
		}
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.Notifications.FromEmail,
			FromName:  cfg.Notifications.FromName,
		}, log)
	default:
		emailSender = notify.NewStubEmailSender(log)
	}
	log.Info("Email provider: %s", cfg.Notifications.Provider)

	notifier := notify.NewEmailNotifier(emailSender, cfg.Notifications.AdminEmail, metricsCollector, log)
	dispatcher := notify.NewDispatcher(
		cfg.Notifications.Workers,
		cfg.Notifications.QueueSize,
		time.Duration(cfg.Notifications.SendTimeout)*time.Second,
		log,
	)

	hours := cfg.Business.BusinessHours()
	loc := hours.Loc()

	// Инициализируем сервисы и use cases
	appointmentSvc := appointmentsService.NewService(
		appointmentRepository,
		txMgr,
		notifier,
		dispatcher,
		loc,
		log,
	)

	createAppointmentUseCase := createAppointmentUC.NewUseCase(
		appointmentRepository,
		catalog,
		notifier,
		dispatcher,
		txMgr,
		metricsCollector,
		hours,
		log,
	)

	getAvailableSlotsUseCase := getAvailableSlotsUC.NewUseCase(
		appointmentRepository,
		catalog,
		hours,
		log,
	)

	// Планировщик фоновых задач
	var (
		sched       *scheduler.Scheduler
		redisClient *redis.Client
	)
	if cfg.Scheduler.Enabled {
		var locker scheduler.Locker = joblock.NopLocker{}
		if cfg.Redis.Enabled {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.Fatal("Failed to connect to redis: %v", err)
			}
			locker = joblock.NewRedisLocker(redisClient, cfg.Metrics.ServiceName)
			log.Info("Scheduler job lock uses redis at %s", cfg.Redis.Addr)
		}

		sched = scheduler.New(locker, time.Duration(cfg.Scheduler.LockTTLSeconds)*time.Second, metricsCollector, log)
		sched.Register(
			scheduler.NewReminderJob(appointmentRepository, notifier, loc, log),
			scheduler.DailyAt(types.MustTimeString(cfg.Scheduler.ReminderAt), loc),
		)
		sched.Register(
			scheduler.NewFollowUpJob(appointmentRepository, notifier, loc, log),
			scheduler.DailyAt(types.MustTimeString(cfg.Scheduler.FollowUpAt), loc),
		)
		sched.Register(
			scheduler.NewDailySummaryJob(appointmentRepository, notifier, loc, log),
			scheduler.DailyAt(types.MustTimeString(cfg.Scheduler.DailySummaryAt), loc),
		)
		sched.Register(
			scheduler.NewNoShowJob(
				appointmentRepository,
				appointmentSvc,
				loc,
				time.Duration(cfg.Scheduler.NoShowGraceMinutes)*time.Minute,
				log,
			),
			scheduler.Every(time.Duration(cfg.Scheduler.NoShowIntervalMin)*time.Minute),
		)
		sched.Start(context.Background())
	}

	// Инициализируем handlers
	getAvailableSlots := getAvailableSlotsHandler.NewHandler(getAvailableSlotsUseCase, log)
	createAppointment := createAppointmentHandler.NewHandler(createAppointmentUseCase, log)
	cancelAppointment := cancelAppointmentHandler.NewHandler(appointmentSvc, log)
	updateAppointmentStatus := updateAppointmentStatusHandler.NewHandler(appointmentSvc, log)
	getAppointment := getAppointmentHandler.NewHandler(appointmentSvc, log)
	listAppointments := listAppointmentsHandler.NewHandler(appointmentSvc, log)

	// Настраиваем роутер
	r := mux.NewRouter()

	// Добавляем metrics middleware (если метрики включены)
	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware(metricsCollector))
		log.Info("HTTP metrics middleware enabled")

		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
		log.Info("Prometheus metrics endpoint exposed at %s", cfg.Metrics.Path)
	}

	// Health checks
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := wrappedDB.PingContext(ctx); err != nil {
			log.Warn("GET /readyz - Database is not reachable: %v", err)
			handlers.RespondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)

	// API prefix
	api := r.PathPrefix("/api/v1").Subrouter()

	// ============================================================
	// PUBLIC ROUTES (без аутентификации)
	// ============================================================

	// Свободные слоты на дату
	api.HandleFunc("/available-slots", getAvailableSlots.Handle).Methods(http.MethodGet)

	// Создание записи
	api.HandleFunc("/appointments", createAppointment.Handle).Methods(http.MethodPost)

	// Отмена записи клиентом (по email)
	api.HandleFunc("/appointments/{id}/cancel", cancelAppointment.Handle).Methods(http.MethodPost)

	// ============================================================
	// ADMIN ROUTES (X-Admin-ID header или Bearer JWT)
	// ============================================================

	admin := r.PathPrefix("/api/v1").Subrouter()
	admin.Use(middleware.AdminAuth(cfg.Admin.JWTSecret))

	admin.HandleFunc("/appointments", listAppointments.Handle).Methods(http.MethodGet)
	admin.HandleFunc("/appointments/{id}", getAppointment.Handle).Methods(http.MethodGet)
	admin.HandleFunc("/appointments/{id}/status", updateAppointmentStatus.Handle).Methods(http.MethodPatch)

	if cfg.Admin.JWTSecret == "" {
		log.Warn("Admin routes trust the %s header, set ADMIN_JWT_SECRET in production", middleware.AdminIDHeader)
	}

	// Создаем HTTP сервер
	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	// Сначала планировщик, затем очередь писем: задачи планировщика могут ещё отправлять письма
	if sched != nil {
		sched.Stop()
	}
	dispatcher.Close()
	log.Info("Notification queue drained")

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close redis client: %v", err)
		}
	}

	// Останавливаем сбор метрик connection pool
	if cfg.Metrics.Enabled {
		close(stopMetricsCh)
		log.Info("Metrics collection stopped")
	}

	log.Info("Server stopped gracefully")
}
