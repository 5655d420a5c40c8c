package main

import (
	"log"
	"os"

	"github.com/andreyxaxa/Submission-Pipeline/config"
	"github.com/andreyxaxa/Submission-Pipeline/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// Config
	envFile := ".env"
	if path := os.Getenv("ENV_FILE"); path != "" {
		envFile = path
	}

	if _, err := os.Stat(envFile); err == nil {
		err = godotenv.Load(envFile)
		if err != nil {
			log.Fatalf("config error: %s", err)
		}
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %s", err)
	}

	// Run
	app.Run(cfg)
}
