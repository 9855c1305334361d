package main

import (
	"github.com/joho/godotenv"

	"github.com/nhle/tempmail/internal/cli"
)

func main() {
	// TEMPMAIL_* overrides may come from a local .env file.
	_ = godotenv.Load()
	cli.Execute()
}
