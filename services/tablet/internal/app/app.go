package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/notices/pkg"
	"github.com/appetiteclub/notices/pkg/event"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/appetiteclub/notices/services/tablet/internal/kv"
	"github.com/appetiteclub/notices/services/tablet/internal/tablet"
)

const (
	AppName    = "tablet"
	AppVersion = "0.1.0"
)

// App wires one tablet session: the local store, the notice service gateway,
// the cross-surface bridge and the diner, server and kitchen panels.
type App struct {
	config *apt.Config
	logger apt.Logger
	micro  *apt.Micro

	kv     kv.Store
	store  *tablet.LocalNoticeStore
	engine *tablet.Engine
	poller *tablet.StatusPoller
}

func New(config *apt.Config, logger apt.Logger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &App{
		config: config,
		logger: logger,
	}, nil
}

func (a *App) Initialize(ctx context.Context) error {
	restaurantID, _ := a.config.GetString("restaurant.id")
	if strings.TrimSpace(restaurantID) == "" {
		return fmt.Errorf("restaurant.id is required")
	}
	sessionID := a.config.GetStringOrDef("session.id", "default")
	origin := a.config.GetStringOrDef("surface.origin", AppName+"-"+apt.GenerateNewID().String()[:8])

	store, err := a.openKV()
	if err != nil {
		return err
	}
	a.kv = store

	a.store = tablet.NewLocalNoticeStore(tablet.StoreConfig{
		RestaurantID: restaurantID,
		SessionID:    sessionID,
		KV:           store,
		Logger:       a.logger,
	})
	if err := a.store.Load(ctx); err != nil {
		return err
	}

	var lifecycles []interface{}

	bridge, closers, err := a.newBridge(ctx, restaurantID, sessionID, origin)
	if err != nil {
		return err
	}
	if bridge != nil {
		a.store.SetBroadcaster(bridge)
		lifecycles = append(lifecycles, apt.LifecycleHooks{OnStart: bridge.Start, OnStop: bridge.Stop})
	}
	for _, c := range closers {
		closer := c
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStop: func(context.Context) error { return closer() },
		})
	}

	compat, err := a.loadCompatibility()
	if err != nil {
		return err
	}

	gateway := tablet.NewHTTPGateway(a.config.GetStringOrDef("services.notice.url", "http://localhost:8090"))
	notifier := tablet.NewUpdateNotifier(a.duration("banner.ttl", tablet.DefaultBannerTTL), nil, a.logger)

	a.engine = tablet.NewEngine(tablet.EngineDeps{
		Store:         a.store,
		Gateway:       gateway,
		Notifier:      notifier,
		Sidebar:       tablet.NewSidebar(a.store.ForceOpen()),
		Compatibility: compat,
	}, a.logger)

	if chefs := parseChefs(a.config.GetStringOrDef("kitchen.chefs", "")); len(chefs) > 0 {
		if _, err := a.engine.SetChefs(ctx, chefs); err != nil {
			return fmt.Errorf("invalid kitchen.chefs: %w", err)
		}
	}

	a.poller = tablet.NewStatusPoller(gateway, a.store, notifier, a.duration("poll.interval", tablet.DefaultPollInterval), a.logger)
	lifecycles = append(lifecycles,
		a.poller,
		apt.LifecycleHooks{OnStop: func(context.Context) error { return a.kv.Close() }},
	)

	handler := tablet.NewHandler(a.engine, a.config, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	a.logger.Info("tablet session ready", "restaurant_id", restaurantID, "session_id", sessionID, "origin", origin)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

// Shutdown is a no-op; the micro stops every lifecycle on exit.
func (a *App) Shutdown(ctx context.Context) error {
	return nil
}

func (a *App) openKV() (kv.Store, error) {
	path, _ := a.config.GetString("store.path")
	if path == "" {
		a.logger.Info("store.path not set, notices will not survive a restart")
		return kv.NewMemoryStore(), nil
	}

	poolSize, err := strconv.Atoi(a.config.GetStringOrDef("store.pool.size", "4"))
	if err != nil || poolSize <= 0 {
		poolSize = 4
	}
	store, err := kv.OpenSQLite(path, poolSize, a.logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newBridge connects the surfaces of the session over NATS. Without nats.url
// the tablet runs as a single surface.
func (a *App) newBridge(ctx context.Context, restaurantID, sessionID, origin string) (*tablet.SurfaceBridge, []func() error, error) {
	natsURL, _ := a.config.GetString("nats.url")
	if natsURL == "" {
		return nil, nil, nil
	}

	deps := tablet.BridgeDeps{Store: a.store}
	var closers []func() error

	streamEnabled, _ := a.config.GetString("nats.stream.enabled")
	if streamEnabled == "true" {
		stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   event.SurfaceStreamName(restaurantID, sessionID),
			Topic:        event.SurfaceSubject(restaurantID, sessionID),
			ConsumerName: origin,
			MaxAge:       24 * time.Hour,
			MaxMsgs:      100,
			LastOnly:     true,
			Logger:       a.logger,
		})
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("NATS stream initialized for surface replay")
		deps.Publisher = stream
		deps.Stream = stream
		deps.Subscriber = stream
		closers = append(closers, stream.Close)
	} else {
		publisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			return nil, nil, err
		}
		subscriber, err := pkg.NewNATSSubscriber(natsURL, a.logger)
		if err != nil {
			publisher.Close()
			return nil, nil, err
		}
		deps.Publisher = publisher
		deps.Subscriber = subscriber
		closers = append(closers, publisher.Close, subscriber.Close)
	}

	return tablet.NewSurfaceBridge(deps, restaurantID, sessionID, origin, a.logger), closers, nil
}

func (a *App) loadCompatibility() (notice.CompatibilityFunc, error) {
	path, _ := a.config.GetString("menu.compatibility.path")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read compatibility table: %w", err)
	}
	return tablet.LoadCompatibility(data)
}

func (a *App) duration(key string, def time.Duration) time.Duration {
	raw, _ := a.config.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		a.logger.Info("invalid duration, using default", "key", key, "value", raw, "default", def.String())
		return def
	}
	return d
}

// parseChefs reads a roster written as "id:name,id:name".
func parseChefs(raw string) []notice.Chef {
	var chefs []notice.Chef
	for _, entry := range strings.Split(raw, ",") {
		id, name, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			continue
		}
		chefs = append(chefs, notice.Chef{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
	}
	return chefs
}
