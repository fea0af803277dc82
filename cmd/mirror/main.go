package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/harhitroot/tgmirror/internal/classify"
	"github.com/harhitroot/tgmirror/internal/config"
	"github.com/harhitroot/tgmirror/internal/exporter"
	"github.com/harhitroot/tgmirror/internal/logger"
	"github.com/harhitroot/tgmirror/internal/publisher"
	"github.com/harhitroot/tgmirror/internal/telegram"
	"github.com/harhitroot/tgmirror/internal/transcript"
	"github.com/harhitroot/tgmirror/internal/transfer"
)

// jitterMax is the per-call random delay bound for the rate governor.
const jitterMax = 500 * time.Millisecond

func main() {
	// 1. Load config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Str("channel", cfg.SourceChannel).Msg("starting channel mirror")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Bootstrap the authenticated telegram client
	proto, err := telegram.NewPersistentClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram client")
	}
	defer proto.Stop()

	limiter := telegram.NewLimiter(telegram.LimiterOptions{
		RPS:       cfg.RateRPS,
		Burst:     cfg.RateBurst,
		Threshold: cfg.RateThreshold,
		Window:    cfg.RateWindow,
		Cooldown:  cfg.RateCooldown,
		JitterMax: jitterMax,
	})
	client := telegram.NewClient(proto.API(), limiter)

	// 5. Resolve channels
	source, err := client.ResolveChannel(ctx, cfg.SourceChannel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve source channel")
	}

	var dest *telegram.Channel
	if cfg.UploadEnabled() {
		dest, err = client.ResolveChannel(ctx, cfg.DestChannel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to resolve destination channel")
		}
		log.Info().Str("destination", dest.Title).Msg("re-upload enabled")
	}

	// 6. Stores and policy
	outDir := filepath.Join(cfg.OutputDir, strconv.FormatInt(source.ID, 10))
	transcriptStore := transcript.NewStore(filepath.Join(outDir, "messages.json"))
	checkpoints := transcript.NewCheckpointStore(filepath.Join(outDir, "checkpoint.json"))

	policy := classify.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = classify.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.PolicyFile).Msg("failed to load download policy")
		}
	}

	// 7. Transfer components
	downloader := transfer.NewDownloader(client, outDir, log)
	uploader := transfer.NewUploader(client, source, dest, log)

	// 8. Optional progress events
	var pub exporter.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, progress events disabled")
		} else {
			defer nc.Close()
			pub = publisher.NewNATSPublisher(nc)
		}
	}

	// 9. Run the export pipeline
	svc := exporter.New(
		client,
		limiter,
		source,
		policy,
		downloader,
		uploader,
		transcriptStore,
		checkpoints,
		pub,
		exporter.NewScheduler(cfg.BatchWidth, cfg.ChunkDelay),
		exporter.Options{
			PageLimit:    cfg.PageLimit,
			PageDelay:    cfg.PageDelay,
			RetryCount:   cfg.RetryCount,
			RetryBackoff: cfg.RetryBackoff,
		},
	)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("export failed")
		log.Info().Dur("cooldown", cfg.FatalCooldown).Msg("cooling down before exit")
		select {
		case <-time.After(cfg.FatalCooldown):
		case <-sigChan:
		}
		os.Exit(1)
	}

	log.Info().Msg("shutdown complete")
}
