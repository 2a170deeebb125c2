// Package main provides the labrun binary: operator CLI, terminal UI and
// development service for lab protocols.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/config"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	lmcp "github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/mcp"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/serve"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/shell"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/tui"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:           "labrun",
	Short:         "Browse and run lab automation protocols",
	Long:          "labrun: browse the protocol catalog, fill protocol parameters and run them in simulation or on hardware.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// env bundles what every command needs from configuration.
type env struct {
	cfg    config.Config
	logger *log.Logger
	client *client.Client
}

// setup loads configuration for cmd and builds the logger and API client.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := log.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	c := client.New(cfg.APIURL, cfg.Timeout)
	c.Logger = logger
	return &env{cfg: cfg, logger: logger, client: c}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// lookupProtocol fetches id, adding "did you mean" hints when it is unknown.
func lookupProtocol(ctx context.Context, svc client.Service, id string) (*protocol.Protocol, error) {
	p, err := svc.GetProtocol(ctx, id)
	if !errors.Is(err, client.ErrNotFound) {
		return p, err
	}
	if ps, lerr := svc.ListProtocols(ctx); lerr == nil {
		if hints := catalog.Suggest(id, ps, 3); len(hints) > 0 {
			return nil, fmt.Errorf("%w\nDid you mean: %s", err, strings.Join(hints, ", "))
		}
	}
	return nil, err
}

// --- tui ---

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		// The alternate screen owns the terminal; controller logs would
		// corrupt it.
		e.client.Logger = log.Nop()
		return tui.Run(tui.Config{
			Service:      e.client,
			TickInterval: e.cfg.TickInterval,
			Simulate:     e.cfg.Simulate,
			Endpoint:     e.cfg.APIURL,
		})
	},
}

// --- shell ---

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive protocol console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		sh := shell.New(e.client,
			shell.WithOutput(cmd.OutOrStdout()),
			shell.WithLogger(e.logger),
			shell.WithTickInterval(e.cfg.TickInterval),
			shell.WithSimulate(e.cfg.Simulate),
		)
		return sh.Run(ctx)
	},
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a catalog file as a development catalog and execution service",
	Long: `Serve a catalog document over HTTP with the same endpoints as the
catalog and execution services. Runs are validated against each protocol's
params_schema and answered with simulated results. Hardware runs are refused.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		cf, issues := catalog.ValidateFile(e.cfg.Serve.Catalog)
		printIssues(cmd, issues)
		if catalog.HasErrors(issues) {
			return fmt.Errorf("catalog %s is invalid", e.cfg.Serve.Catalog)
		}

		ctx, cancel := signalContext()
		defer cancel()
		srv := serve.New(cf,
			serve.WithLatency(e.cfg.Serve.Latency),
			serve.WithLogger(e.logger),
		)
		fmt.Fprintf(cmd.ErrOrStderr(), "Serving %d protocols from %s on http://%s\n",
			len(cf.Protocols), e.cfg.Serve.Catalog, e.cfg.Serve.Addr)
		return srv.ListenAndServe(ctx, e.cfg.Serve.Addr)
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [catalog.yaml]",
	Short: "Validate a catalog file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cf, issues := catalog.ValidateFile(args[0])
	printIssues(cmd, issues)
	if catalog.HasErrors(issues) {
		return fmt.Errorf("validation failed with %d error(s)", countErrors(issues))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d protocols)\n", args[0], len(cf.Protocols))
	return nil
}

func printIssues(cmd *cobra.Command, issues []*catalog.Issue) {
	w := cmd.ErrOrStderr()
	var errs []*catalog.Issue
	for _, is := range issues {
		if is.Severity == "warning" {
			fmt.Fprintf(w, "  ⚠ [%s] %s\n", is.Phase, is.Message)
			if is.Path != "" {
				fmt.Fprintf(w, "    at: %s\n", is.Path)
			}
			continue
		}
		errs = append(errs, is)
	}
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "Validation failed: %d error(s)\n\n", len(errs))
	for i, is := range errs {
		fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, is.Phase, is.Message)
		if is.Path != "" {
			fmt.Fprintf(w, "     at: %s\n", is.Path)
		}
	}
}

func countErrors(issues []*catalog.Issue) int {
	n := 0
	for _, is := range issues {
		if is.Severity == "error" {
			n++
		}
	}
	return n
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:       "schema protocol|result|catalog",
	Short:     "Export a JSON Schema to stdout",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"protocol", "result", "catalog"},
	RunE:      runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	switch args[0] {
	case "protocol":
		data, err = protocol.GenerateProtocolJSONSchema()
	case "result":
		data, err = protocol.GenerateResultJSONSchema()
	case "catalog":
		data, err = catalog.GenerateJSONSchema()
	default:
		return fmt.Errorf("unknown schema %q: use protocol, result or catalog", args[0])
	}
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve labrun tools to MCP clients over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		s := lmcp.NewServer(version, &lmcp.Handlers{
			Service:      e.client,
			Logger:       e.logger,
			TickInterval: e.cfg.TickInterval,
		})
		return server.ServeStdio(s)
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "labrun %s (build: %s)\n", version, commit)
	},
}

func init() {
	// Global settings; each maps onto a config key.
	pf := rootCmd.PersistentFlags()
	pf.String("api-url", config.DefaultAPIURL, "Base URL of the catalog and execution services")
	pf.Duration("timeout", config.DefaultTimeout, "Request timeout for service calls")
	pf.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")

	for _, c := range []*cobra.Command{runCmd, tuiCmd, shellCmd, mcpCmd} {
		c.Flags().Duration("tick-interval", config.DefaultTickInterval, "Progress update cadence while a run is in flight")
	}
	for _, c := range []*cobra.Command{runCmd, tuiCmd, shellCmd} {
		c.Flags().Bool("simulate", true, "Run in simulation mode without connecting to hardware")
	}

	serveCmd.Flags().String("addr", config.DefaultServeAddr, "Listen address")
	serveCmd.Flags().String("catalog", config.DefaultServeCatalog, "Catalog file to serve (YAML or JSON)")
	serveCmd.Flags().Duration("latency", config.DefaultServeLatency, "Simulated run duration")

	initListFlags()
	initShowFlags()
	initRunFlags()

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
