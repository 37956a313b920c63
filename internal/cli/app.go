package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cloudvault/cloudvault-cli/internal/api"
	"github.com/cloudvault/cloudvault-cli/internal/config"
	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/filesync"
	inthttp "github.com/cloudvault/cloudvault-cli/internal/http"
	"github.com/cloudvault/cloudvault-cli/internal/logging"
	"github.com/cloudvault/cloudvault-cli/internal/notify"
	"github.com/cloudvault/cloudvault-cli/internal/session"
	"github.com/cloudvault/cloudvault-cli/internal/state"
	"github.com/cloudvault/cloudvault-cli/internal/store"
)

// ErrNotLoggedIn is shown when a command needs a session and none is stored.
var ErrNotLoggedIn = errors.New("not logged in; run 'cloudvault login' first")

// app bundles the components one command invocation needs.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *events.EventBus
	store    *store.SQLiteStore
	client   *api.Client
	session  *session.Manager
	files    *filesync.Controller
	notifier *notify.Notifier
}

// newApp wires config, state store, API client, session and file controller.
func newApp(ctx context.Context) (*app, error) {
	cfg := getConfig()
	log := GetLogger()

	if inthttp.NeedsProxyPassword(cfg) {
		password, err := readPassword(os.Stdin, os.Stderr, fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = password
	}

	if err := config.EnsureDir(cfg.StateDirectory()); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	st, err := store.OpenSQLite(ctx, cfg.StateDBPath())
	if err != nil {
		return nil, err
	}

	// The session reads its token through the client, and the client reads
	// the token from the session, so the token source is set afterwards.
	client, err := api.NewClient(cfg, nil, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	bus := events.NewEventBus(0)
	mgr := session.NewManager(client, st, bus, log)
	client.SetTokenSource(mgr)

	files := filesync.NewController(client, mgr, state.NewFileListState(bus), bus, log)
	files.Watch()

	return &app{
		cfg:      cfg,
		logger:   log,
		bus:      bus,
		store:    st,
		client:   client,
		session:  mgr,
		files:    files,
		notifier: notify.NewNotifier(cfg.Notifications, log),
	}, nil
}

// Close releases the database and the event bus.
func (a *app) Close() {
	a.files.Close()
	if n := a.bus.GetDroppedEventCount(); n > 0 {
		a.logger.Debugf("Event bus dropped %d events", n)
	}
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warnf("Failed to close state database: %v", err)
	}
}

// requireSession validates the stored token and fails when there is none.
func (a *app) requireSession(ctx context.Context) (session.Snapshot, error) {
	snap, err := a.session.Bootstrap(ctx)
	if err != nil {
		return snap, err
	}
	if !snap.IsAuthenticated() {
		return snap, ErrNotLoggedIn
	}
	return snap, nil
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := GetContext()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withSession is withApp for commands that need a logged-in user.
func withSession(fn func(ctx context.Context, a *app) error) error {
	return withApp(func(ctx context.Context, a *app) error {
		if _, err := a.requireSession(ctx); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}
