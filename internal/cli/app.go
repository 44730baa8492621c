package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"reina/internal/amqp"
	"reina/internal/api"
	"reina/internal/backend"
	"reina/internal/cache"
	"reina/internal/config"
	"reina/internal/log"
	"reina/internal/middleware/ratelimit"
	"reina/internal/middleware/trace"
	"reina/internal/services"
	"reina/internal/session"
	ports "reina/internal/sheets"
	gsheet "reina/internal/sheets/google"
	mem "reina/internal/sheets/memory"
)

// amqpDialTimeout bounds broker retries during command startup.
const amqpDialTimeout = 3 * time.Second

// App wires the session store, API client and services for one process.
type App struct {
	Config *config.Config
	Logger *log.Logger

	Store         *session.MemoryStore
	API           *api.Client
	Trace         *trace.Transport
	Expenses      *services.ExpenseService
	Notifications *services.NotificationService
	Dashboard     *services.Dashboard
	Budget        *services.BudgetWatcher
	Income        *services.IncomeService

	// Publisher is nil when AMQP is not configured.
	Publisher *amqp.Client

	out     io.Writer
	cleanup []func() error
}

// Open builds an App from cfg. The session is restored from the configured
// backend before Open returns.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger, out io.Writer) (*App, error) {
	if logger == nil {
		logger = log.Discard()
	}
	app := &App{Config: cfg, Logger: logger, out: out}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := backend.OpenSession(ctx, backend.NewFactory(logger), backendCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open session backend: %w", err)
	}
	app.Store = store
	app.cleanup = append(app.cleanup, closeStore)

	var next http.RoundTripper
	if cfg.APIRateLimit > 0 {
		limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.APIRateLimit})
		app.cleanup = append(app.cleanup, func() error {
			limiter.Stop()
			return nil
		})
		next = ratelimit.NewTransport(nil, limiter)
	}
	app.Trace = trace.NewTransport(next, logger)
	app.API = api.New(cfg.APIBaseURL, store,
		api.WithHTTPClient(app.Trace.Client()),
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(logger),
		api.WithRefreshCoalescing(cfg.CoalesceRefresh),
	)

	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		dialCtx, cancel := context.WithTimeout(ctx, amqpDialTimeout)
		client, err := amqp.NewClient(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		cancel()
		if err != nil {
			// Without a publisher the budget check runs inline.
			logger.Warn("AMQP unavailable, checking budget inline", log.FieldError, err)
		} else {
			app.Publisher = client
			publisher = client
			app.cleanup = append(app.cleanup, client.Close)
		}
	}

	manager := cache.NewManager(logger)
	caches := services.NewCaches(cfg.CacheSize, cfg.CacheTTL, manager)
	manager.StartCleanup(cfg.CacheTTL)
	app.cleanup = append(app.cleanup, func() error {
		manager.Stop()
		return nil
	})

	app.Expenses = services.NewExpenseService(app.API, caches, publisher, logger)
	app.Notifications = services.NewNotificationService(app.API, caches, logger)
	app.Dashboard = services.NewDashboard(app.Expenses, app.Notifications, app.API)
	app.Budget = services.NewBudgetWatcher(app.API, logger)
	app.Income = services.NewIncomeService(app.API, publisher, logger)
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}

// RequireLogin fails when no session is stored.
func (a *App) RequireLogin() error {
	if !a.Store.Get().Authenticated() {
		return fmt.Errorf("%w: run `reina login` first", api.ErrNotAuthenticated)
	}
	return nil
}

// AfterSpendingChange runs the over-budget check inline when no worker is
// listening for events. Failures are logged only.
func (a *App) AfterSpendingChange(ctx context.Context) {
	if a.Publisher != nil {
		return
	}
	added, err := a.Budget.Check(ctx)
	if err != nil {
		a.Logger.WarnContext(ctx, "Budget check failed", log.FieldError, err)
		return
	}
	if added {
		fmt.Fprintln(a.out, "! Your expenses have exceeded your net income. A notification was added.")
	}
}

// Exporter returns the Google Sheets exporter, or the in-memory one for dry runs.
func (a *App) Exporter(ctx context.Context, dryRun bool) (ports.Exporter, *mem.Store, error) {
	if dryRun {
		store := mem.New()
		return store, store, nil
	}
	if err := a.Config.ValidateSheets(); err != nil {
		return nil, nil, err
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   a.Config.GoogleSpreadsheetID,
		SheetName:       a.Config.GoogleSheetName,
		CredentialsJSON: a.Config.GoogleServiceAccountJSON,
		CredentialsFile: a.Config.GoogleServiceAccountFile,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	return client, nil, nil
}
