package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/config"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	appHTTP "github.com/cmlabs-hris/timetrack-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/repository/memory"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/repository/postgresql"
	timeTrackService "github.com/cmlabs-hris/timetrack-backend-go/internal/service/timetrack"
)

type storage struct {
	tx       timetrack.Transactor
	days     timetrack.DayRecordRepository
	schedule timetrack.ScheduleProvider
	absence  timetrack.AbsenceProvider
	audit    timetrack.AuditSink
	health   appHTTP.HealthCheck
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := appHTTP.NewLogger(cfg.App.Name, cfg.App.Version, cfg.App.Env, parseLevel(cfg.App.LogLevel), os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to load time zone: %w", err)
	}

	store, err := openStorage(ctx, cfg, loc)
	if err != nil {
		return err
	}
	defer store.close()

	service := timeTrackService.NewTimeTrackService(
		store.tx,
		store.days,
		store.schedule,
		store.absence,
		store.audit,
		timeTrackService.NewNormalizer(loc),
		timeTrackService.Options{
			MaxBatchDays:  cfg.TimeTrack.MaxBatchDays,
			MaxPeriodDays: cfg.TimeTrack.MaxPeriodDays,
			StaleAfter:    cfg.TimeTrack.StaleAfter,
		},
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	timeTrackHandler := appHTTP.NewTimeTrackHandler(service)

	router := appHTTP.NewRouter(JWTService, timeTrackHandler, appHTTP.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
		Health:         store.health,
	})

	if cfg.Cron.Enabled {
		scheduler := cron.NewScheduler(ctx, logger)
		cron.NewTimeTrackJobs(service, cfg.Cron.Interval, logger).RegisterJobs(scheduler)
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server running", "addr", server.Addr, "storage", cfg.Database.Driver, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStorage(ctx context.Context, cfg *config.Config, loc *time.Location) (*storage, error) {
	switch cfg.Database.Driver {
	case config.StorageDriverMemory:
		store := memory.NewStore()
		return &storage{
			tx:       memory.NewTransactor(store),
			days:     memory.NewDayRecordRepository(store),
			schedule: memory.OfficeWeek(loc),
			absence:  memory.NewLeaveCalendar(),
			audit:    memory.NewAuditLog(store),
			close:    func() {},
		}, nil

	default:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgresql.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return &storage{
			tx:       postgresql.NewTransactor(db),
			days:     postgresql.NewDayRecordRepository(db),
			schedule: postgresql.NewScheduleProvider(db, loc),
			absence:  postgresql.NewAbsenceProvider(db),
			audit:    postgresql.NewAuditTrailRepository(db),
			health:   db.Health,
			close:    db.Close,
		}, nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
