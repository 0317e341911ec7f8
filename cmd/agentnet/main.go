package main

import (
	"github.com/joho/godotenv"

	"github.com/subhash0x/agentnet/internal/cli"
)

func main() {
	// Optional; configuration also comes from config.yaml and AGENTNET_* env vars.
	_ = godotenv.Load()

	cli.Execute()
}
