// Package main provides the cerebro CLI: manage subscriptions, trigger
// per-day syncs, read the day view, and inspect coverage.
//
// Usage: cerebro <command> [flags]
//
// Commands: add, list, sync, view, read, unread, coverage, status,
// config-set, auth-set, auth-status, auth-clear.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/observability/logging"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/config"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	slog.SetDefault(logging.NewTextLogger())
	settings := config.Load("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	args := os.Args[2:]

	if err := dispatch(ctx, command, args, settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: cerebro <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  add --name NAME --id WECHAT_ID [--url FEED_URL]   track a channel")
	fmt.Fprintln(os.Stderr, "  list                                              list subscriptions")
	fmt.Fprintln(os.Stderr, "  sync [--date YYYY-MM-DD]                          run one acquisition pass")
	fmt.Fprintln(os.Stderr, "  view [--date YYYY-MM-DD] [--mode source|time|recommend]")
	fmt.Fprintln(os.Stderr, "  read --ids 1,2,3 [--date YYYY-MM-DD]              mark day-ids read")
	fmt.Fprintln(os.Stderr, "  unread --ids 1,2,3 [--date YYYY-MM-DD]            mark day-ids unread")
	fmt.Fprintln(os.Stderr, "  coverage [--date YYYY-MM-DD]                      per-day coverage report")
	fmt.Fprintln(os.Stderr, "  status                                            subscription health overview")
	fmt.Fprintln(os.Stderr, "  config-set KEY=VALUE [KEY=VALUE ...]              update the config file")
	fmt.Fprintln(os.Stderr, "  auth-set [--expires-hours N]                      store a session token (stdin)")
	fmt.Fprintln(os.Stderr, "  auth-status                                       session state")
	fmt.Fprintln(os.Stderr, "  auth-clear                                        drop the session")
}

func dispatch(ctx context.Context, command string, args []string, settings config.Settings) error {
	switch command {
	case "config-set":
		return runConfigSet(args)
	case "help", "-h", "--help":
		usage()
		return nil
	}

	app, err := newApp(settings)
	if err != nil {
		return err
	}
	defer app.Close()

	switch command {
	case "add":
		return app.runAdd(ctx, args)
	case "list":
		return app.runList(ctx)
	case "sync":
		return app.runSync(ctx, args)
	case "view":
		return app.runView(ctx, args)
	case "read":
		return app.runRead(ctx, args, true)
	case "unread":
		return app.runRead(ctx, args, false)
	case "coverage":
		return app.runCoverage(ctx, args)
	case "status":
		return app.runStatus(ctx)
	case "auth-set":
		return app.runAuthSet(ctx, args)
	case "auth-status":
		return app.runAuthStatus(ctx)
	case "auth-clear":
		return app.runAuthClear(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runConfigSet applies KEY=VALUE updates to the config file with the
// line-preserving upsert.
func runConfigSet(args []string) error {
	flags := flag.NewFlagSet("config-set", flag.ContinueOnError)
	envPath := flags.String("env-file", "", "config file path (default: resolved)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	pairs := flags.Args()
	if len(pairs) == 0 {
		return fmt.Errorf("config-set: at least one KEY=VALUE required")
	}

	updates := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return fmt.Errorf("config-set: malformed pair %q", pair)
		}
		updates[key] = value
	}

	path := config.ResolveEnvPath(*envPath)
	if err := config.UpsertEnvFile(path, updates); err != nil {
		return err
	}
	fmt.Printf("updated %s (%d keys)\n", path, len(updates))
	return nil
}

// parseDateFlag reads --date, defaulting to today.
func parseDateFlag(flags *flag.FlagSet, args []string) (time.Time, error) {
	date := flags.String("date", "", "target local day (YYYY-MM-DD, default today)")
	if err := flags.Parse(args); err != nil {
		return time.Time{}, err
	}
	if *date == "" {
		return time.Now(), nil
	}
	return timeutil.ParseDay(*date)
}

// parseIDList reads a comma-separated day-id list.
func parseIDList(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		id, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid day-id %q", trimmed)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no day-ids given")
	}
	return ids, nil
}
