package main

import (
	"context"
	"time"

	"github.com/spf13/viper"

	"github.com/imtaco/meeting-coordinator/internal/config"
	"github.com/imtaco/meeting-coordinator/internal/etcd"
	"github.com/imtaco/meeting-coordinator/internal/httputil"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/internal/otel"
	"github.com/imtaco/meeting-coordinator/internal/workflow"
	"github.com/imtaco/meeting-coordinator/meetings/service"
	"github.com/imtaco/meeting-coordinator/meetings/store"
	"github.com/imtaco/meeting-coordinator/meetings/transport"
)

type Config struct {
	App  config.App      `mapstructure:"app"`
	HTTP httputil.Config `mapstructure:"http"`
	Etcd etcd.Config     `mapstructure:"etcd"`
	Otel otel.Config     `mapstructure:"otel"`

	EtcdPrefixEventStore string        `mapstructure:"etcd_prefix_event_store"`
	JWTSecret            string        `mapstructure:"jwt_secret"`
	TokenTTL             time.Duration `mapstructure:"token_ttl"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("etcd_prefix_event_store", "/events/")
		v.SetDefault("jwt_secret", "MY-secret-key-change-in-production")
		v.SetDefault("token_ttl", jwt.DefaultTTL)

		config.Setup(v, "app")
		etcd.Setup(v, "etcd")
		otel.Setup(v, "otel", "meetings")
		httputil.Setup(v, "http", "0.0.0.0:3000")
	})
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	logger, err := log.NewLogger(config.App.LogConfigFile)
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	otelShutdown, err := otel.Init(ctx, &config.Otel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OTEL provider", log.Error(err))
	}

	logger.Info("Starting Meetings service",
		log.String("addr", config.HTTP.Addr),
		log.Any("etcdUrl", config.Etcd.Endpoints))

	etcdClient, err := etcd.NewClient(&config.Etcd)
	if err != nil {
		logger.Fatal("Failed to create etcd client", log.Error(err))
	}

	jwtAuth := jwt.NewAuth(config.JWTSecret, jwt.WithTTL(config.TokenTTL))
	eventStore := store.NewEventStore(
		etcdClient,
		config.EtcdPrefixEventStore,
		logger.Module("EventStore"),
	)
	eventService := service.NewEventService(
		eventStore,
		jwtAuth,
		logger.Module("EventSvc"),
	)

	router := transport.NewRouter(eventService, jwtAuth, logger.Module("Router"))
	server := httputil.NewServer(&config.HTTP, router.Handler())

	go func() {
		logger.Info("Starting HTTP server", log.String("addr", config.HTTP.Addr))
		if err := server.Listen(); err != nil {
			logger.Fatal("Failed to start HTTP server", log.Error(err))
		}
	}()

	cleanup := func(ctx context.Context) {
		_ = server.Shutdown(ctx)

		if err := etcdClient.Close(); err != nil {
			logger.Error("Failed to close etcd client", log.Error(err))
		}
		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	workflow.WaitGracefulShutdown(ctx, logger.Module("CleanUp"), cleanup, config.App.ShutdownTimeout)
}
