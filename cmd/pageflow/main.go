package main

import (
	"log"

	"github.com/joho/godotenv"
)

// Set with -ldflags at build time.
var (
	version   = "dev"
	buildTime = ""
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	Execute()
}
