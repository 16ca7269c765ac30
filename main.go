package main

import (
	"github.com/joho/godotenv"

	"coursenav/cmd"
)

func main() {
	// API keys may live in a local .env file; absence is fine.
	_ = godotenv.Load()
	cmd.Execute()
}
