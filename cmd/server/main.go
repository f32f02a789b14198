package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/db"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/metrics"
	"github.com/malabook/mala/server/internal/scheduler"
	"github.com/malabook/mala/server/internal/server"
	"github.com/malabook/mala/server/internal/storage"
)

// Version is a build-time variable. The value is overridden by ldflags.
var Version string

func main() {
	app := &cli.App{
		Name:    "mala-server",
		Usage:   "Start the Mala booking API server",
		Version: serverVersion(),
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "config",
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"MALA_CONFIG"},
			},
			&cli.IntFlag{
				Name:        "log-level",
				DefaultText: "from config (4, Info)",
				Usage:       "log verbosity level: 2 (Error), 3 (Warning), 4 (Info), 5 (Debug), 6 (Trace)",
			},
			&cli.IntFlag{
				Name:  "http-port",
				Usage: "Override the configured http port",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start the API server",
				Action: func(c *cli.Context) error {
					return start(c.Path("config"), c.Int("log-level"), c.Int("http-port"))
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations and exit",
				Action: func(c *cli.Context) error {
					return migrate(c.Path("config"))
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(context.Background(), "Server failed", "err", err)
	}
}

func serverVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

func start(configPath string, logLevel, httpPort int) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if httpPort != 0 {
		cfg.HTTP.Port = httpPort
	}
	if logLevel == 0 {
		logLevel = cfg.Log.Level
	}

	out := io.Writer(os.Stdout)
	if cfg.Log.File != "" {
		logFile, err := log.CreateAppendFile(cfg.Log.File)
		if err != nil {
			return err
		}
		defer func() { _ = logFile.Close() }()
		out = io.MultiWriter(os.Stdout, logFile)
	}
	log.DefaultEntry.Logger.SetOutput(out)
	log.DefaultEntry.Logger.SetLevel(logrus.Level(logLevel))

	database, err := db.Open(ctx, cfg.Database.DSN, cfg.Database.LogQueries)
	if err != nil {
		return err
	}

	c := cache.New(ctx, cfg.Redis, cfg.Cache)
	defer func() { _ = c.Close() }()

	identity := auth.NewKeycloakClient(cfg.Keycloak)
	verifier := auth.NewVerifier(cfg.Keycloak)

	store, err := storage.New(ctx, cfg.Spaces)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()

	sched := scheduler.New(database, c, verifier, collector, cfg.Limits.SlowRequest)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	address := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := server.NewServer(address, serverVersion(), database, c, identity, verifier, store, collector, cfg.Limits)
	return srv.Run(ctx)
}

func migrate(configPath string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if _, err := db.Open(ctx, cfg.Database.DSN, cfg.Database.LogQueries); err != nil {
		return err
	}
	log.Info(ctx, "Migrations applied", "dsn", cfg.Database.DSN)
	return nil
}
