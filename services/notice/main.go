package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/notices/pkg"
	"github.com/appetiteclub/notices/pkg/event"
	mongodb "go.mongodb.org/mongo-driver/mongo"

	"github.com/appetiteclub/notices/services/notice/internal/mongo"
	"github.com/appetiteclub/notices/services/notice/internal/notices"
	"github.com/appetiteclub/notices/services/notice/internal/postgres"
)

const (
	appNamespace = "NOTICE"
	appName      = "notice"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	var (
		repo       notices.NoticeRepo
		db         *mongodb.Database
		lifecycles []interface{}
	)

	switch driver := config.GetStringOrDef("db.driver", "mongo"); driver {
	case "mongo":
		conn := mongo.NewConn(config, logger)
		if err := conn.Start(ctx); err != nil {
			log.Fatalf("%s(%s) cannot connect to MongoDB: %v", appName, appVersion, err)
		}
		db = conn.Database()
		if db == nil {
			log.Fatalf("%s(%s) cannot initialize repository database: %v", appName, appVersion, errors.New("repository database is nil"))
		}
		noticeRepo := mongo.NewNoticeRepo(db)
		if err := noticeRepo.EnsureIndexes(ctx); err != nil {
			log.Fatalf("%s(%s) cannot prepare notices collection: %v", appName, appVersion, err)
		}
		repo = noticeRepo
		lifecycles = append(lifecycles, apt.LifecycleHooks{OnStop: conn.Stop})
	case "postgres":
		pgRepo := postgres.NewNoticeRepo(config, logger)
		if err := pgRepo.Start(ctx); err != nil {
			log.Fatalf("%s(%s) cannot start postgres repository: %v", appName, appVersion, err)
		}
		repo = pgRepo
		lifecycles = append(lifecycles, apt.LifecycleHooks{OnStop: pgRepo.Stop})
	default:
		log.Fatalf("%s(%s) unknown db.driver %q", appName, appVersion, driver)
	}

	var pub events.Publisher
	switch driver := config.GetStringOrDef("events.driver", "nats"); driver {
	case "nats":
		natsPub, err := pkg.NewNATSPublisher(config.GetStringOrDef("nats.url", "nats://localhost:4222"))
		if err != nil {
			log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
		}
		pub = natsPub
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStop: func(context.Context) error {
				return natsPub.Close()
			},
		})
	case "kafka":
		kafkaPub, err := pkg.NewKafkaPublisher(config.GetStringOrDef("kafka.brokers", "localhost:9092"), event.NoticeKey)
		if err != nil {
			log.Fatalf("%s(%s) cannot connect to Kafka: %v", appName, appVersion, err)
		}
		pub = kafkaPub
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStop: func(context.Context) error {
				return kafkaPub.Close()
			},
		})
	case "none":
		logger.Info("Notice events disabled")
	default:
		log.Fatalf("%s(%s) unknown events.driver %q", appName, appVersion, driver)
	}

	handler := notices.NewHandler(repo, pub, config, logger)

	demoEnabled, _ := config.GetString("seeding.demo")
	if demoEnabled == "true" {
		logger.Info("Demo seeding enabled for notice service")
		restaurants := splitList(config.GetStringOrDef("seeding.restaurants", "demo-restaurant"))
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStart: notices.DemoSeedingFunc(repo, func() *mongodb.Database { return db }, restaurants, logger),
		})
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
