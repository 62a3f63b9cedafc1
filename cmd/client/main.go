package main

import (
	"context"
	"log"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/cli"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
