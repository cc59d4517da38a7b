package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/joho/godotenv"

	"github.com/kioskpos/pos-backend/pkg/config"
	"github.com/kioskpos/pos-backend/pkg/db"
	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// offline commands work on the migrations directory alone.
var offline = map[string]func(options) (string, error){
	"create": func(o options) (string, error) {
		if o.name == "" {
			return "", errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return "", fmt.Errorf("create migration: %w", err)
		}
		return "created migration: " + path, nil
	},
	"validate": func(o options) (string, error) {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return "", fmt.Errorf("migration validation failed: %w", err)
		}
		return "migration validation passed", nil
	},
}

var online = []string{"up", "down", "status", "version"}

func main() {
	var o options
	flag.StringVar(&o.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&o.dir, "dir", migrate.DefaultDir, "goose migrations directory; the default uses the embedded copy")
	flag.StringVar(&o.name, "name", "", "migration name (for create)")
	flag.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	if run, ok := offline[o.cmd]; ok {
		msg, err := run(o)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(msg)
		return
	}
	if !slices.Contains(online, o.cmd) {
		fmt.Fprintf(os.Stderr, "unknown -cmd value: %s\n", o.cmd)
		os.Exit(2)
	}
	if o.cmd == "version" && o.version == "" {
		fmt.Fprintln(os.Stderr, "missing -version for version command")
		os.Exit(2)
	}

	if err := apply(context.Background(), o); err != nil {
		os.Exit(1)
	}
}

// apply runs a command against the configured database and prints goose's
// per-migration results.
func apply(ctx context.Context, o options) error {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return err
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": o.cmd, "dir": o.dir})

	fsys, err := migrate.Source(o.dir)
	if err != nil {
		logg.Error(ctx, "failed to open migrations", err)
		return err
	}
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect to database", err)
		return err
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to get sql handle", err)
		return err
	}

	lines, err := execute(ctx, sqlDB, fsys, o)
	for _, line := range lines {
		fmt.Println(line)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(logg.WithField(ctx, "migrations", len(lines)), "migrate finished")
	return nil
}

func execute(ctx context.Context, sqlDB *sql.DB, fsys fs.FS, o options) ([]string, error) {
	if o.cmd == "version" {
		return migrate.MigrateToVersion(ctx, sqlDB, fsys, o.version)
	}
	return migrate.Run(ctx, sqlDB, fsys, o.cmd)
}
