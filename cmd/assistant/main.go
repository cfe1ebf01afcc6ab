package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shop-assistant/config"
	"shop-assistant/internal/bootstrap"
	"shop-assistant/internal/broker"
	"shop-assistant/internal/cart"
	"shop-assistant/internal/redisclient"
	"shop-assistant/internal/service"
	"shop-assistant/internal/util"
	"shop-assistant/internal/voice"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", "", "load environment from this file before .env")
	image := flag.StringP("image", "i", "", "image file used as the camera frame")
	session := flag.StringP("session", "s", "terminal", "session id; carts persist per session")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	noRedis := flag.Bool("no-redis", false, "keep the cart in memory only")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("Failed to load %s: %v", *envFile, err)
		}
	}

	cfg := config.Load()

	if err := util.InitLoggerWithLevel(cfg.Server.Env, *logLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, closeCatalog, err := bootstrap.LoadCatalog(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	defer closeCatalog()

	var repo cart.Repository = cart.NewMemoryRepository()
	if cfg.Redis.Enabled && !*noRedis {
		client, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, cart will not persist", zap.Error(err))
		} else {
			defer client.Close()
			repo = client.CartRepository(cfg.Redis.CartTTL)
		}
	}

	var writer broker.Writer = broker.DiscardWriter{}
	if cfg.Kafka.Enabled {
		writer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
	}
	publisher := broker.NewEventPublisher(writer)
	defer publisher.Close()

	assistantCfg := bootstrap.AssistantConfig(cfg, cat, repo, bootstrap.Identifier(cfg.Vision), publisher)

	speaker := voice.NewConsoleSpeaker(os.Stdout)
	a := service.NewAssistant(ctx, *session, assistantCfg, speaker, imageFrames(*image))

	if err := run(ctx, a, voice.NewConsoleRecognizer(os.Stdin)); err != nil {
		logger.Error("Assistant stopped", zap.Error(err))
		os.Exit(1)
	}
}

// imageFrames reads the image file on every capture so it can be swapped
// while the assistant runs.
func imageFrames(path string) service.FrameSource {
	return service.FrameFunc(func(context.Context) ([]byte, error) {
		if path == "" {
			return nil, errors.New("no image file given, start with --image")
		}
		return os.ReadFile(path)
	})
}

func run(ctx context.Context, a *service.Assistant, rec voice.Recognizer) error {
	if err := a.Greet(ctx); err != nil {
		return err
	}

	for {
		fmt.Print("you> ")
		transcript, err := rec.RecognizeOnce(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			if err := a.HandleRecognitionError(ctx, err); err != nil {
				return err
			}
			continue
		}

		if _, err := a.HandleTranscript(ctx, transcript); err != nil && ctx.Err() != nil {
			return nil
		}
	}
}
