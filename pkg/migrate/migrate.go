package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/boxlink-backend/pkg/logger"
)

// DefaultDir is the on-disk location of the goose files, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Command is a goose operation supported by the migrate binary.
type Command string

const (
	CommandUp      Command = "up"
	CommandDown    Command = "down"
	CommandStatus  Command = "status"
	CommandVersion Command = "version"
)

// ParseCommand validates a -cmd flag value.
func ParseCommand(value string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(value))); c {
	case CommandUp, CommandDown, CommandStatus, CommandVersion:
		return c, nil
	default:
		return "", fmt.Errorf("unknown migrate command %q", value)
	}
}

// Source selects where goose reads migrations from. An empty Dir means the
// files compiled into the binary.
type Source struct {
	Dir     string
	Logger  *logger.Logger
	Verbose bool
}

func (s Source) prepare(ctx context.Context) (string, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetVerbose(s.Verbose)
	if s.Logger != nil {
		goose.SetLogger(gooseLogger{ctx: ctx, logg: s.Logger})
	}
	if s.Dir == "" {
		goose.SetBaseFS(embedded)
		return embeddedDir, nil
	}
	goose.SetBaseFS(nil)
	return s.Dir, nil
}

// Run executes up, down or status against db.
func Run(ctx context.Context, db *sql.DB, src Source, cmd Command) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if cmd == CommandVersion {
		return fmt.Errorf("use MigrateToVersion for %q", cmd)
	}
	dir, err := src.prepare(ctx)
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, string(cmd), db, dir); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to targetVersion (YYYYMMDDHHMMSS).
func MigrateToVersion(ctx context.Context, db *sql.DB, src Source, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil || len(targetVersion) != 14 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", targetVersion)
	}
	dir, err := src.prepare(ctx)
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

// CurrentVersion reports the latest applied migration version.
func CurrentVersion(ctx context.Context, db *sql.DB) (int64, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}

// gooseLogger routes goose output through the service logger.
type gooseLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logg.Info(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logg.Error(g.ctx, "goose.fatal", fmt.Errorf(format, v...))
	os.Exit(1)
}
