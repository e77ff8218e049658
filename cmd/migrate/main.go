package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/db"
	"github.com/angelmondragon/boxlink-backend/pkg/env"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	"github.com/angelmondragon/boxlink-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", env.Get("BOXLINK_MIGRATIONS_DIR", ""), "goose migrations directory (empty uses the files built into the binary)")
	verbose := flag.Bool("verbose", env.Bool("BOXLINK_MIGRATE_VERBOSE", false), "log every goose statement")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate never open a database
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		check := migrate.ValidateEmbedded
		if *dir != "" {
			check = func() error { return migrate.ValidateDir(*dir) }
		}
		if err := check(); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    *dir,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	// goose files are postgres SQL; sqlite gets the embedded schema instead
	if strings.EqualFold(cfg.DB.Driver, config.DBDriverSQLite) {
		if *cmd != "up" {
			fail("only -cmd=up is supported for sqlite")
		}
		requireResource(ctx, logg, "sqlite schema", migrate.ApplySQLiteSchema(ctx, dbClient.DB()))
		logg.Info(ctx, "sqlite schema applied")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	command, err := migrate.ParseCommand(*cmd)
	if err != nil {
		fail("%v", err)
	}
	src := migrate.Source{Dir: *dir, Logger: logg, Verbose: *verbose}
	if command == migrate.CommandVersion {
		if *version == "" {
			fail("missing -version for version command")
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, src, *version)
	} else {
		err = migrate.Run(ctx, sqlDB, src, command)
	}
	requireResource(ctx, logg, "goose "+*cmd, err)
	logg.Info(ctx, "migrate complete")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
