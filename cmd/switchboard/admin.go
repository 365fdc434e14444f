package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/uptalk/switchboard/internal/adapter/postgres"
	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain/escalation"
)

// runAdmin dispatches admin subcommands (gen-token, list-escalations).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "gen-token":
		return runAdminGenToken(args[1:])
	case "list-escalations":
		return runAdminListEscalations(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: switchboard admin <command> [options]

Commands:
  gen-token           Hash an operator token for auth.token_hash
  list-escalations    List stored escalations
  help                Show this help message

Examples:
  switchboard admin gen-token
  switchboard admin list-escalations --status pending --limit 20
`)
}

// runAdminGenToken prompts for an operator token and prints its bcrypt
// hash, for use as SWITCHBOARD_AUTH_TOKEN_HASH or auth.token_hash.
func runAdminGenToken(args []string) error {
	fs := flag.NewFlagSet("gen-token", flag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := promptSecret("Operator token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	confirm, err := promptSecret("Confirm token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if token != confirm {
		return fmt.Errorf("tokens do not match")
	}
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), *cost)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

func runAdminListEscalations(args []string) error {
	fs := flag.NewFlagSet("list-escalations", flag.ContinueOnError)
	status := fs.String("status", "", "filter by status (pending/assigned/resolved)")
	priority := fs.String("priority", "", "filter by priority")
	limit := fs.Int("limit", 50, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	items, err := store.ListEscalations(ctx, escalation.Filters{
		Status:   escalation.Status(*status),
		Priority: escalation.Priority(*priority),
	}, *limit)
	if err != nil {
		return fmt.Errorf("list escalations: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("No escalations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tCONVERSATION\tREASON\tPRIORITY\tSTATUS\tAGENT\tCREATED")
	for i := range items {
		e := &items[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Code, e.ConversationID, e.Reason, e.Priority, e.Status,
			e.AssignedAgentID, e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// promptSecret reads a line from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
