package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zetyquickly/self-aware/internal/config"
	"github.com/zetyquickly/self-aware/internal/log"
	"github.com/zetyquickly/self-aware/pkg/emotion"
	"github.com/zetyquickly/self-aware/pkg/gateway"
	"github.com/zetyquickly/self-aware/pkg/inference"
	"github.com/zetyquickly/self-aware/pkg/session"
	"github.com/zetyquickly/self-aware/pkg/stt"
	"github.com/zetyquickly/self-aware/pkg/tts"
)

func main() {
	port := flag.String("port", "", "Listen port (overrides PORT env)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	cfg.LoadEnv()
	if *port != "" {
		cfg.Port = *port
	}
	if *debug {
		cfg.Debug = true
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	sttProvider, err := stt.NewOpenAI(
		stt.WithAPIKey(cfg.OpenAIKey),
		stt.WithModel(cfg.STTModel),
	)
	if err != nil {
		log.Error("create stt provider", "error", err)
		os.Exit(1)
	}
	defer sttProvider.Close()

	llm, err := inference.NewClient(
		inference.WithAPIKey(cfg.OpenAIKey),
		inference.WithBaseURL(cfg.LLMBaseURL),
		inference.WithModel(cfg.LLMModel),
	)
	if err != nil {
		log.Error("create inference client", "error", err)
		os.Exit(1)
	}
	defer llm.Close()

	ttsProvider, err := tts.NewOpenAI(
		tts.WithAPIKey(cfg.OpenAIKey),
		tts.WithModel(cfg.TTSModel),
		tts.WithVoice(cfg.TTSVoice),
	)
	if err != nil {
		log.Error("create tts provider", "error", err)
		os.Exit(1)
	}
	defer ttsProvider.Close()

	classifier := emotion.NewClassifier(cfg.EmotionAPIURL)

	srv := gateway.NewServer(
		session.NewStore(),
		classifier,
		sttProvider,
		llm,
		ttsProvider,
		gateway.WithPort(cfg.Port),
		gateway.WithServerLogger(log.L()),
	)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("starting gateway",
		"port", cfg.Port,
		"llm_model", cfg.LLMModel,
		"stt_model", cfg.STTModel,
		"tts_model", cfg.TTSModel,
		"emotion_api", cfg.EmotionAPIURL,
	)

	if err := srv.Start(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
