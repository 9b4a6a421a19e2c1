package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/jewelbox/backoffice/internal/auth/http"
	"github.com/jewelbox/backoffice/internal/auth/revocation"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/internal/auth/store"
	"github.com/jewelbox/backoffice/internal/auth/store/drivers/sqlite"
	"github.com/jewelbox/backoffice/pkg/cryptox"
	"github.com/jewelbox/backoffice/pkg/mailx"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the back office auth service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	redis    *redis.Client // nil when the denylist is in memory
	denylist revocation.Denylist
	mailer   mailx.Sender
	tokens   *service.TokenIssuer

	// Services
	loginService        *service.LoginService
	sessionService      *service.SessionService
	principalService    *service.PrincipalService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService // only for the in-memory denylist

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "backoffice-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	tokens, err := service.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.Issuer, cfg.PendingTokenTTL, cfg.TokenTTL)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	app.tokens = tokens

	if err := app.initMailer(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initDenylist(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run listens on the configured port and blocks until SIGINT/SIGTERM.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.server.Addr, err)
	}

	return app.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled or the server fails, then
// shuts everything down.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("auth service starting", "addr", ln.Addr().String(), "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		app.logger.Info("shutdown requested", "cause", context.Cause(ctx))
	}

	if err := app.Shutdown(); err != nil {
		return errors.Join(serveErr, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	return serveErr
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}

	app.logger.Info("auth service stopped")
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initMailer() error {
	if strings.ToLower(app.cfg.Mail.Mode) != MailModeSMTP {
		if app.cfg.Env == "prod" {
			app.logger.Warn("mail mode is log; verification codes are written to the log, not emailed")
		}
		app.mailer = mailx.LogSender{}
		return nil
	}

	enc, err := mailx.ParseEncryption(app.cfg.Mail.Encryption)
	if err != nil {
		return err
	}

	sender, err := mailx.NewSMTPSender(mailx.SMTPConfig{
		Host:       app.cfg.Mail.Host,
		Port:       app.cfg.Mail.Port,
		Username:   app.cfg.Mail.Username,
		Password:   app.cfg.Mail.Password,
		From:       app.cfg.Mail.From,
		FromName:   app.cfg.Mail.FromName,
		Encryption: enc,
		Timeout:    app.cfg.Mail.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize smtp sender: %w", err)
	}
	app.mailer = sender

	app.logger.Info("smtp mail delivery enabled", "host", app.cfg.Mail.Host, "port", app.cfg.Mail.Port)
	return nil
}

// initDenylist picks Redis when configured so revocations survive restarts
// and are shared between replicas; otherwise an in-memory set pruned by the
// housekeeping service.
func (app *Application) initDenylist() error {
	if app.cfg.RedisURL == "" {
		mem := revocation.NewMemory()
		app.denylist = mem
		app.housekeepingService = service.NewHousekeepingService(
			mem,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
		app.logger.Info("session denylist in memory")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := revocation.DialRedis(ctx, app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.denylist = revocation.NewRedis(client)

	app.logger.Info("session denylist in redis")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.loginService = &service.LoginService{
		Store:  app.db,
		Tokens: app.tokens,
		Lockout: service.LockoutPolicy{
			Threshold: app.cfg.LockoutThreshold,
			Duration:  app.cfg.LockoutDuration,
		},
		Notifier:      app.mailer,
		Denylist:      app.denylist,
		OTPTTL:        app.cfg.OTPTTL,
		NotifyTimeout: app.cfg.Mail.Timeout,
	}

	app.sessionService = &service.SessionService{
		Store:    app.db,
		Tokens:   app.tokens,
		Denylist: app.denylist,
	}

	app.principalService = &service.PrincipalService{
		Store:   app.db,
		Lockout: app.loginService.Lockout,
	}
	app.bootstrapService = &service.BootstrapService{
		Store: app.db,
		Token: app.cfg.BootstrapToken,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.denylist,
		app.logger,
	)

	router.LoginService = app.loginService
	router.SessionService = app.sessionService
	router.PrincipalService = app.principalService
	router.BootstrapService = app.bootstrapService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
