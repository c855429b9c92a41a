package main

import (
	"context"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load the configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to the Bot API")
	}

	var extended chatSender
	if cfg.ExtendedConfigured() {
		extendedAPI, err := newExtendedClient(cfg.TelegramToken, cfg.LocalAPIURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to the local Bot API gateway")
		}
		extended = extendedAPI
		log.Info().Str("gateway", cfg.LocalAPIURL).Msg("extended upload path enabled")
	} else {
		log.Info().Msg("no local gateway configured, uploads limited to the standard path")
	}

	log.Info().Msg("using ffmpeg backend")
	transcoder, err := NewTranscoder(&FfmpegBackend{})
	if err != nil {
		log.Fatal().Err(err).Msg("ffmpeg backend is not available")
	}

	var queue Queue
	if cfg.RabbitMQURL != "" {
		queue, err = NewAMQPQueue(cfg.RabbitMQURL, cfg.Workers)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		log.Info().Msg("using the RabbitMQ job queue")
	} else {
		queue = NewChanQueue(cfg.Workers * 4)
		log.Info().Msg("using the in-process job queue")
	}
	defer queue.Close()

	notifier := NewRedis(cfg)
	var memory MemoryStore
	if notifier != nil {
		memory = notifier
	} else {
		memory = NewLocalMemory()
	}

	archiver, err := NewArchiver(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load the S3 config")
	}

	llm := NewLLMClient(cfg)
	if llm == nil {
		log.Warn().Msg("no MISTRAL_API_KEY set, falling back to regex request parsing")
	}

	downloader := NewDownloader(cfg)
	dispatcher := NewDispatcher(api, extended)
	pipeline := NewPipeline(cfg, queue, downloader, transcoder, dispatcher, notifier, memory, archiver)
	bot := NewBot(api, llm, queue, memory, pipeline, cfg.Workers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipeline.Run(ctx); err != nil {
			log.Error().Err(err).Msg("pipeline stopped with an error")
		}
	}()

	bot.Run(ctx)
	<-done
	log.Info().Msg("shut down cleanly")
}
