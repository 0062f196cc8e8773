package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/coordinator/api"
	"github.com/agrovision/fedcore/coordinator/middleware"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/mqtt"
	"github.com/agrovision/fedcore/pkg/storage"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7070"
	envPrefixHTTP = "COORDINATOR_HTTP_"
	envPrefixMQTT = "COORDINATOR_MQTT_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel      string        `env:"COORDINATOR_LOG_LEVEL"      envDefault:"info"`
	InstanceID    string        `env:"COORDINATOR_INSTANCE_ID"`
	Dimension     int           `env:"COORDINATOR_DIMENSION"      envDefault:"10"`
	Aggregation   string        `env:"COORDINATOR_AGGREGATION"    envDefault:"fedavg"`
	AutoClose     bool          `env:"COORDINATOR_AUTO_CLOSE"     envDefault:"false"`
	SweepInterval time.Duration `env:"COORDINATOR_SWEEP_INTERVAL" envDefault:"1s"`
	ArchiveDir    string        `env:"COORDINATOR_ARCHIVE_DIR"    envDefault:"./data/archive"`
	MQTTEnabled   bool          `env:"COORDINATOR_MQTT_ENABLED"   envDefault:"false"`
	OTELURL       url.URL       `env:"COORDINATOR_OTEL_URL"`
	TraceRatio    float64       `env:"COORDINATOR_TRACE_RATIO"    envDefault:"0"`
	// RoundSchedule, when set, opens rounds on a cron schedule.
	RoundSchedule        string        `env:"COORDINATOR_ROUND_SCHEDULE"`
	RoundTimezone        string        `env:"COORDINATOR_ROUND_TIMEZONE"         envDefault:"UTC"`
	RoundMinParticipants int           `env:"COORDINATOR_ROUND_MIN_PARTICIPANTS" envDefault:"2"`
	RoundTimeout         time.Duration `env:"COORDINATOR_ROUND_TIMEOUT"          envDefault:"5m"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	storageCfg := storage.Config{}
	if err := env.Parse(&storageCfg); err != nil {
		logger.Error("failed to load storage configuration", slog.String("error", err.Error()))

		return
	}
	repos, err := storage.NewRepositories(storageCfg)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))

		return
	}
	if repos.Closer != nil {
		defer repos.Closer.Close()
	}

	var archive coordinator.Archive
	if cfg.ArchiveDir != "" {
		fa, err := fl.NewFileArchive(cfg.ArchiveDir)
		if err != nil {
			logger.Error("failed to initialize model archive", slog.String("error", err.Error()))

			return
		}
		archive = fa
	}

	mqttCfg := mqtt.Config{}
	if err := env.ParseWithOptions(&mqttCfg, env.Options{Prefix: envPrefixMQTT}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s MQTT configuration : %s", svcName, err.Error()))

		return
	}
	pubsub := mqtt.NewNoop()
	if cfg.MQTTEnabled {
		if mqttCfg.ClientID == "" {
			mqttCfg.ClientID = fmt.Sprintf("%s-%s", svcName, cfg.InstanceID)
		}
		pubsub, err = mqtt.NewPubSub(mqttCfg, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Error("failed to disconnect mqtt client", slog.Any("error", err))
			}
		}()
	}

	svcCfg := coordinator.Config{
		Dimension:   cfg.Dimension,
		Aggregation: cfg.Aggregation,
		AutoClose:   cfg.AutoClose,
		BaseTopic:   mqttCfg.BaseTopic,
	}
	svc, err := coordinator.NewService(svcCfg, repos, archive, pubsub, logger)
	if err != nil {
		logger.Error("failed to create coordinator service", slog.String("error", err.Error()))

		return
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Restore(ctx); err != nil {
		logger.Error("failed to restore coordinator state", slog.String("error", err.Error()))

		return
	}

	if err := svc.Subscribe(ctx); err != nil {
		logger.Error("failed to subscribe to node topics", slog.String("error", err.Error()))

		return
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)
	sweeper := coordinator.NewSweeper(svc, cfg.SweepInterval, logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return sweeper.Start(ctx)
	})

	if cfg.RoundSchedule != "" {
		rs, err := coordinator.NewRoundScheduler(svc, coordinator.ScheduleConfig{
			Schedule:        cfg.RoundSchedule,
			Timezone:        cfg.RoundTimezone,
			MinParticipants: cfg.RoundMinParticipants,
			Timeout:         cfg.RoundTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to create round scheduler", slog.String("error", err.Error()))

			return
		}
		g.Go(func() error {
			return rs.Start(ctx)
		})
	}

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
