// ABOUTME: Entry point for the keyward forward-authentication gateway
// ABOUTME: Subcommands: serve, invite, rules, health

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/keyward/keyward/internal/audit"
	"github.com/keyward/keyward/internal/authz"
	"github.com/keyward/keyward/internal/ceremony"
	"github.com/keyward/keyward/internal/challenge"
	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/gateway"
	"github.com/keyward/keyward/internal/session"
	"github.com/keyward/keyward/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _
| | _____ _   ___      ____ _ _ __ __| |
| |/ / _ \ | | \ \ /\ / / _' | '__/ _' |
|   <  __/ |_| |\ V  V / (_| | | | (_| |
|_|\_\___|\__, | \_/\_/ \__,_|_|  \__,_|
          |___/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keyward <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the gateway")
		fmt.Println("  invite --user NAME       Create a registration invitation")
		fmt.Println("  rules list               Print the authorization rule table")
		fmt.Println("  rules add                Add an authorization rule")
		fmt.Println("  health                   Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "invite":
		err = runInvite(ctx, os.Args[2:])
	case "rules":
		err = runRules(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(setupLogger(cfg))

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Listen:  %s\n", cfg.ListenAddr())
	green.Print("    ▶ ")
	fmt.Printf("Public:  %s\n", cfg.PublicURL)
	green.Print("    ▶ ")
	fmt.Printf("RP id:   %s\n", cfg.RPID)
	green.Print("    ▶ ")
	fmt.Printf("Store:   %s\n", cfg.DBPath)
	fmt.Println()

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	recorder, err := audit.NewRecorder(cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer recorder.Close()

	validator, err := challenge.New(cfg.ChallengeAlgo, cfg.ChallengeSecret)
	if err != nil {
		return fmt.Errorf("creating challenge validator: %w", err)
	}

	sessions, err := session.New(cfg)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}

	verifier, err := ceremony.New(cfg)
	if err != nil {
		return fmt.Errorf("creating ceremony verifier: %w", err)
	}

	engine := authz.New(st)
	if err := engine.Reload(ctx); err != nil {
		// An empty snapshot denies everything, which is the safe failure
		// mode; the operator fixes the rules and hits authz/reload.
		slog.Error("initial rule load failed, denying all requests", "error", err)
	}

	srv := gateway.New(cfg, st, verifier, validator, sessions, engine, recorder)
	return srv.Run(ctx)
}

func runInvite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	name := fs.String("user", "", "user name (created if missing)")
	display := fs.String("display", "", "display name for a newly created user")
	roles := fs.String("roles", "", "comma-separated roles to assign")
	duration := fs.Int("duration", 600, "invitation validity in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	user, err := st.GetUserByName(ctx, *name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if *display == "" {
			*display = *name
		}
		user = &store.User{Name: *name, DisplayName: *display}
		if err := st.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
	case err != nil:
		return fmt.Errorf("looking up user: %w", err)
	}

	for _, role := range splitList(*roles) {
		if err := st.CreateRole(ctx, &store.Role{Value: role, Display: role}); err != nil {
			return fmt.Errorf("creating role %q: %w", role, err)
		}
		if err := st.AssignRole(ctx, user.ID, role); err != nil {
			return fmt.Errorf("assigning role %q: %w", role, err)
		}
	}

	ch := make([]byte, 32)
	if _, err := rand.Read(ch); err != nil {
		return fmt.Errorf("generating challenge: %w", err)
	}

	inv := &store.Invitation{
		UserID:       user.ID,
		DurationSecs: *duration,
		Challenge:    ch,
	}
	if err := st.CreateInvitation(ctx, inv); err != nil {
		return fmt.Errorf("creating invitation: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Invitation for %s (valid %ds)\n", user.Name, inv.DurationSecs)
	fmt.Printf("  id:  %s\n", inv.ID)
	fmt.Printf("  url: %sregister/%s\n", cfg.PublicURL, inv.ID)
	return nil
}

func runRules(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: keyward rules <list|add>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	switch args[0] {
	case "list":
		return listRules(ctx, st)
	case "add":
		return addRule(ctx, st, args[1:])
	default:
		return fmt.Errorf("unknown rules command: %s", args[0])
	}
}

func listRules(ctx context.Context, st store.Store) error {
	rules, err := st.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("listing rules: %w", err)
	}
	if len(rules) == 0 {
		fmt.Println("No rules; all requests are denied.")
		return nil
	}

	for _, r := range rules {
		action := color.GreenString("allow")
		if r.Action == store.ActionDeny {
			action = color.RedString("deny")
		}
		roles := "any"
		if r.Roles != nil {
			roles = strings.Join(r.Roles, ",")
		}
		fmt.Printf("%4d  %-20s %s  host=%q path=%q roles=%s\n",
			r.Position, r.Name, action, r.HostPattern, r.PathPattern, roles)
	}
	return nil
}

func addRule(ctx context.Context, st store.Store, args []string) error {
	fs := flag.NewFlagSet("rules add", flag.ExitOnError)
	name := fs.String("name", "", "unique rule name")
	position := fs.Int("position", 0, "evaluation position, lower runs first")
	description := fs.String("description", "", "optional description")
	host := fs.String("host", "", "host regexp, empty matches any")
	path := fs.String("path", "", "path regexp, empty matches any")
	roles := fs.String("roles", "", "comma-separated roles, empty matches any caller")
	action := fs.String("action", "allow", "allow or deny")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	rule := &store.Rule{
		Name:        *name,
		Position:    *position,
		Description: *description,
		HostPattern: *host,
		PathPattern: *path,
		Action:      store.ActionAllow,
	}
	if roleList := splitList(*roles); len(roleList) > 0 {
		rule.Roles = roleList
	}
	switch *action {
	case "allow":
	case "deny":
		rule.Action = store.ActionDeny
	default:
		return fmt.Errorf("action must be allow or deny, got %q", *action)
	}

	if err := st.CreateRule(ctx, rule); err != nil {
		return fmt.Errorf("creating rule: %w", err)
	}

	fmt.Printf("Created rule %s at position %d. Run a reload to activate it.\n", rule.Name, rule.Position)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d/healthz", cfg.ListenPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: %s", resp.Status)
	}
	color.Green("Gateway healthy at %s", url)
	return nil
}

func setupLogger(cfg *config.Settings) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
