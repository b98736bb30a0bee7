package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/chunkvault/internal/cli"
	"github.com/dmitrijs2005/chunkvault/internal/server"
	"github.com/dmitrijs2005/chunkvault/internal/server/config"
)

func main() {

	cmd, args, err := cli.SplitCommand(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(os.TempDir(), "chunkvault-cli.log")
	}
	if err := cli.PromptPassphrase(cfg, os.Stdin, os.Stderr); err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = cli.Run(ctx, app.Files(), cmd, args, os.Stdout)
	app.Close()
	if err != nil {
		log.Fatalf("%v", err)
	}

}
