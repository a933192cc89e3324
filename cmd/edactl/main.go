package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/Krimson/eda-forensics/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.New().Execute(); err != nil {
		os.Exit(1)
	}
}
