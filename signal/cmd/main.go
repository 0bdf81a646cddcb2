package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/imtaco/meeting-coordinator/internal/config"
	"github.com/imtaco/meeting-coordinator/internal/httputil"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/internal/otel"
	"github.com/imtaco/meeting-coordinator/internal/redis"
	"github.com/imtaco/meeting-coordinator/internal/workflow"
	meetingsclient "github.com/imtaco/meeting-coordinator/meetings/client"
	"github.com/imtaco/meeting-coordinator/signal"
	"github.com/imtaco/meeting-coordinator/signal/transport"
)

const fanoutReadyTimeout = 10 * time.Second

type Config struct {
	App    config.App      `mapstructure:"app"`
	WSHttp httputil.Config `mapstructure:"ws_http"`
	Redis  redis.Config    `mapstructure:"redis"`
	Otel   otel.Config     `mapstructure:"otel"`
	Signal signal.Config   `mapstructure:"signal"`

	MeetingsURL     string        `mapstructure:"meetings_url"`
	MeetingsTimeout time.Duration `mapstructure:"meetings_timeout"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("meetings_url", "http://localhost:3000")
		v.SetDefault("meetings_timeout", "5s")
		v.SetDefault("jwt_secret", "MY-secret-key-change-in-production")
		v.SetDefault("allowed_origins", []string{"*"})

		config.Setup(v, "app")
		redis.Setup(v, "redis")
		otel.Setup(v, "otel", "signal")
		httputil.Setup(v, "ws_http", "0.0.0.0:8081")
		signal.Setup(v, "signal")
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

	serverID := uuid.New().String()
	logger.Info("Starting Signal server", log.String("serverId", serverID))

	redisClient, err := redis.Connect(&config.Redis, 3*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", log.Error(err))
	}

	jwtAuth := jwt.NewAuth(config.JWTSecret)

	// host lookups authenticate as the signal service itself
	events := meetingsclient.New(
		config.MeetingsURL,
		config.MeetingsTimeout,
		meetingsclient.ServiceToken(jwtAuth, "signal"),
		logger.Module("Meetings"),
	)
	hosts, err := signal.NewHostResolver(events, config.Signal.HostCacheSize, logger.Module("Hosts"))
	if err != nil {
		logger.Fatal("Failed to create host resolver", log.Error(err))
	}

	roster := signal.NewRoster(
		redisClient,
		config.Signal.RedisPrefix,
		config.Signal.EndedTTL,
		logger.Module("Roster"),
	)
	fanout := signal.NewFanout(
		redisClient,
		config.Signal.FanoutChannel,
		serverID,
		logger.Module("Fanout"),
	)
	endpoint := signal.NewEndpoint(
		config.Signal,
		roster,
		fanout,
		hosts,
		jwtAuth,
		config.AllowedOrigins,
		logger.Module("Signal"),
	)

	router := transport.NewRouter(
		endpoint.HandleWebSocket,
		roster,
		jwtAuth,
		config.AllowedOrigins,
		logger.Module("Router"),
	)
	wsServer := httputil.NewServer(&config.WSHttp, router.Handler())

	runCtx, stopRun := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return fanout.Run(gctx)
	})

	select {
	case <-fanout.Ready():
	case <-time.After(fanoutReadyTimeout):
		logger.Fatal("Fanout did not subscribe in time")
	}

	g.Go(func() error {
		logger.Info("Starting WebSocket server", log.String("addr", config.WSHttp.Addr))
		return wsServer.Listen()
	})
	go func() {
		if err := g.Wait(); err != nil {
			logger.Fatal("Signal server stopped", log.Error(err))
		}
	}()

	cleanup := func(ctx context.Context) {
		_ = wsServer.Shutdown(ctx)
		stopRun()
		_ = g.Wait()

		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis client", log.Error(err))
		}
		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	workflow.WaitGracefulShutdown(ctx, logger.Module("CleanUp"), cleanup, config.App.ShutdownTimeout)
}
