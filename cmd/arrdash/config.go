package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the service configuration in use by the daemon",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <service>",
	Short: "Change a service's connection settings",
	Long: `Change a service's connection settings on the running daemon. The change
is stored in the daemon's database and takes effect immediately.

Unset flags keep their current values.

Examples:
  arrdash config set radarr --url http://nas:7878 --api-key abc123
  arrdash config set indexer --provider prowlarr --url http://nas:9696
  arrdash config set transmission --disable`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSet,
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config.toml syntax, required fields, and environment variable substitution without starting the daemon.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configTestCmd, configInitCmd)

	f := configSetCmd.Flags()
	f.String("url", "", "Base URL")
	f.String("api-key", "", "API key")
	f.String("username", "", "Username (transmission)")
	f.String("password", "", "Password (transmission)")
	f.String("provider", "", "Indexer provider (jackett, prowlarr)")
	f.Duration("timeout", 0, "Request timeout")
	f.Bool("enable", false, "Enable the service")
	f.Bool("disable", false, "Disable the service")
	configSetCmd.MarkFlagsMutuallyExclusive("enable", "disable")

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	resp, err := NewClient(serverURL).Config()
	if err != nil {
		return describeError("config", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	printServices(cmd.OutOrStdout(), &resp.Services)
	return nil
}

func printServices(w io.Writer, s *config.ServicesConfig) {
	fmt.Fprintf(w, "  %-13s %-8s %-30s %-9s %s\n", "SERVICE", "ENABLED", "URL", "PROVIDER", "CREDENTIALS")
	rule(w, 78)
	for _, kind := range backend.Kinds {
		sc := s.Get(kind)
		if sc == nil {
			fmt.Fprintf(w, "  %-13s %-8s\n", kind.Label(), "-")
			continue
		}
		creds := "-"
		switch {
		case sc.APIKey != "":
			creds = "api key " + sc.APIKey
		case sc.Username != "":
			creds = sc.Username + ":" + sc.Password
		}
		provider := sc.Provider
		if provider == "" {
			provider = "-"
		}
		fmt.Fprintf(w, "  %-13s %-8t %-30s %-9s %s\n", kind.Label(), sc.Enabled, truncate(sc.URL, 30), provider, creds)
	}
}

// applySetFlags overlays the flags the user set onto current. Secrets that
// were not changed stay masked so the daemon keeps the stored value.
func applySetFlags(cmd *cobra.Command, current *config.ServiceConfig) config.ServiceConfig {
	var sc config.ServiceConfig
	if current != nil {
		sc = *current
	}

	f := cmd.Flags()
	if f.Changed("url") {
		sc.URL, _ = f.GetString("url")
	}
	if f.Changed("api-key") {
		sc.APIKey, _ = f.GetString("api-key")
	}
	if f.Changed("username") {
		sc.Username, _ = f.GetString("username")
	}
	if f.Changed("password") {
		sc.Password, _ = f.GetString("password")
	}
	if f.Changed("provider") {
		sc.Provider, _ = f.GetString("provider")
	}
	if f.Changed("timeout") {
		sc.Timeout, _ = f.GetDuration("timeout")
	}
	switch {
	case f.Changed("enable"):
		sc.Enabled = true
	case f.Changed("disable"):
		sc.Enabled = false
	case current == nil:
		sc.Enabled = true
	}
	return sc
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	kind, err := backend.ParseKind(args[0])
	if err != nil {
		return err
	}

	client := NewClient(serverURL)
	current, err := client.Config()
	if err != nil {
		return describeError("config", err)
	}

	sc := applySetFlags(cmd, current.Services.Get(kind))
	resp, err := client.UpdateService(kind, sc)
	if err != nil {
		return describeError(fmt.Sprintf("update %s", kind), err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n\n", kind.Label())
	printServices(cmd.OutOrStdout(), &resp.Services)
	return nil
}

func configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if p, err := config.Discover(); err == nil {
		return p
	}
	return config.DefaultPath()
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	path := configPath(args)
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			printConfigErrors(w, configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	printConfigSummary(w, cfg)
	fmt.Fprintln(w, "\nConfiguration valid!")
	return nil
}

func printConfigErrors(w io.Writer, e *config.ConfigError) {
	if len(e.Missing) > 0 {
		fmt.Fprintln(w, "Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		fmt.Fprintln(w)
	}

	if len(e.Errors) > 0 {
		fmt.Fprintln(w, "Validation errors:")
		for _, err := range e.Errors {
			fmt.Fprintf(w, "  - %s\n", err)
		}
		fmt.Fprintln(w)
	}
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration Summary:")
	fmt.Fprintf(w, "  Server:     %s:%d (log: %s)\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.LogLevel)
	fmt.Fprintf(w, "  Database:   %s\n", cfg.Database.Path)
	fmt.Fprintf(w, "  Poll:       every %s\n", cfg.Poll.Interval)
	retention := "forever"
	if cfg.Audit.Retention > 0 {
		retention = cfg.Audit.Retention.String()
	}
	fmt.Fprintf(w, "  Audit:      keep %s\n", retention)

	for _, kind := range backend.Kinds {
		sc := cfg.Services.Get(kind)
		state := "not configured"
		if sc != nil {
			state = "disabled"
			if sc.Enabled {
				state = sc.URL
			}
		}
		fmt.Fprintf(w, "  %-12s%s\n", kind.Label()+":", state)
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultPath()
	if len(args) > 0 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nEdit it, then run 'arrdash config test %s'.\n", path, path)
	return nil
}
