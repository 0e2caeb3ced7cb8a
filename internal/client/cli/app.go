package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/apierr"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/services"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/transport"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/session"
	"github.com/dmitrijs2005/sessionkeeper/internal/session/sqlitestore"
	"github.com/prometheus/client_golang/prometheus"
)

// homePath is the route the shell sits on once signed in.
const homePath = "/"

type App struct {
	config         *config.Config
	logger         logging.Logger
	authService    services.AuthService
	accountService services.AccountService
	state          *session.State
	route          *policy.Route
	registry       *prometheus.Registry
	db             *sql.DB
	reader         *bufio.Reader
	out            io.Writer

	mu       sync.Mutex
	userName string
}

// NewApp opens the session database, restores the persisted session and
// builds the transport and services on top of it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := sqlitestore.OpenDatabase(ctx, c.StateDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	store := sqlitestore.New(db)

	state, err := session.Restore(ctx, store)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry, m := metrics.NewRegistry()

	a := &App{
		config:   c,
		logger:   logger,
		state:    state,
		route:    policy.NewRoute(homePath),
		registry: registry,
		db:       db,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}

	apiClient, err := transport.New(transport.Options{
		BaseURL:       c.APIBaseURL,
		Timeout:       c.RequestTimeout,
		State:         state,
		Store:         store,
		Policy:        policy.New(c.AuthPathPrefix, c.SignInPath),
		Location:      a.route,
		OnSessionLost: a.onSessionLost,
		RefreshLeeway: c.RefreshLeeway,
		Logger:        logger,
		Metrics:       m,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.authService = services.NewAuthService(apiClient, apiClient.Coordinator())
	a.accountService = services.NewAccountService(apiClient)
	if !state.IsAuthenticated() {
		a.route.Set(c.SignInPath)
	}
	return a, nil
}

// Run serves metrics when configured and blocks in the REPL until the user
// exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.db.Close()

	if a.config.MetricsAddr != "" {
		srv := a.startMetricsServer(ctx)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	a.Root(ctx)
}

func (a *App) startMetricsServer(ctx context.Context) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(a.registry))

	srv := &http.Server{Addr: a.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info(ctx, "serving metrics", "addr", a.config.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(ctx, "metrics server stopped", "err", err)
		}
	}()
	return srv
}

func (a *App) isLoggedIn() bool {
	return a.state.IsAuthenticated()
}

func (a *App) setUserName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userName = name
}

func (a *App) currentUserName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName
}

// onSessionLost is the shell's navigation: it moves to the sign-in route
// and tells the user why. It may run on any goroutine issuing requests.
func (a *App) onSessionLost(e policy.SessionLost) {
	a.setUserName("")
	a.route.Set(e.RedirectTo)
	fmt.Fprintf(a.out, "Session ended: %s\nUse 'signin' to continue.\n", e.Reason.Message)
}

// report prints err the way the user should see it.
func (a *App) report(ctx context.Context, err error) {
	a.logger.Debug(ctx, "command failed", "err", err)
	if e, ok := apierr.As(err); ok {
		fmt.Fprintln(a.out, "Error:", e.Message)
		return
	}
	fmt.Fprintln(a.out, "Error:", err)
}
