// Command migrate manages the Artenis database schema.
//
//	migrate up              apply pending SQL migrations
//	migrate auto            run model AutoMigrate only
//	migrate status          list applied and pending migrations
//	migrate down [version]  revert one migration, the latest by default
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"artenis/internal/config"
	"artenis/internal/database"
	"artenis/internal/middleware"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate <up|auto|status|down> [version]")
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Args()); err != nil {
		middleware.Logger.Error("migrate failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.InitLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	m := database.NewMigrator(db, database.GetMigrations())

	switch args[0] {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			return err
		}
		middleware.Logger.Info("migrations applied", "count", n)

	case "auto":
		if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		middleware.Logger.Info("models migrated")

	case "status":
		applied, pending, err := m.Status(ctx)
		if err != nil {
			return err
		}
		return printStatus(applied, pending)

	case "down":
		version, err := m.Latest(ctx)
		if err != nil {
			return err
		}
		if len(args) > 1 {
			if version, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid version %q", args[1])
			}
		}
		if version == 0 {
			return errors.New("nothing to revert")
		}
		return m.Down(ctx, version)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func printStatus(applied []int, pending []database.Migration) error {
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATE")
	for _, mig := range database.GetMigrations() {
		state := "pending"
		if done[mig.Version] {
			state = "applied"
		}
		fmt.Fprintf(w, "%s\t%s\n", mig.ID(), state)
	}
	fmt.Fprintf(w, "\n%d applied, %d pending\n", len(applied), len(pending))
	return w.Flush()
}
