package main

import (
	"flag"
	"log"
	"os"

	"TokenPulse/internal/di"
	"TokenPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s news=%s cache=%s", cfg.Environment, cfg.News.Provider, cfg.Cache.Backend)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("kafka: brokers=%v requests=%s results=%s", cfg.Kafka.Brokers, cfg.Kafka.RequestTopic, cfg.Kafka.ResultTopic)

	// blocks until SIGINT/SIGTERM
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
