package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/botctl/pkg/client"
)

func main() {
	c := &command{
		globals:  &GlobalFlags{},
		sessions: NewSessionManager(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	root := buildRoot(c)
	if err := root.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot wires every subcommand to c.
func buildRoot(c *command) *cobra.Command {
	root := createRootCommand(c.globals)
	root.AddCommand(
		createControlCommand(c, client.CommandStart, "Start the bot", false),
		createControlCommand(c, client.CommandStop, "Stop the bot (asks for confirmation)", true),
		createControlCommand(c, client.CommandRestart, "Restart the bot (asks for confirmation)", true),
		createStatusCommand(c),
		createStatsCommand(c),
		createWatchCommand(c),
		createDashboardCommand(c),
		createLoginCommand(c),
		createLogoutCommand(c),
	)
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	return root
}

// createRootCommand creates the root command with the persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "botctl",
		Short: "Control and monitor a remote bot process",
		Long: `botctl talks to a bot's control API to start, stop and restart it,
and to watch its status and usage counters.

Examples:
  botctl status
  botctl restart --yes
  botctl watch --listen :9100          # headless monitoring with /dashboard and /metrics
  botctl dashboard                     # interactive terminal dashboard
  botctl status --api-url=https://bot.example.com/api/bot`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "bot control API base URL (e.g. http://host:5000/api/bot)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 0, "request timeout (default 10s)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	return root
}

func createControlCommand(c *command, op client.Command, short string, confirm bool) *cobra.Command {
	flags := &CommandFlags{}
	cmd := &cobra.Command{
		Use:   op.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Command(cmd.Context(), op, *flags)
		},
	}
	if confirm {
		cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "do not ask for confirmation")
	}
	return cmd
}

func createStatusCommand(c *command) *cobra.Command {
	flags := &QueryFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the bot is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), *flags)
		},
	}
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the status as JSON")
	return cmd
}

func createStatsCommand(c *command) *cobra.Command {
	flags := &QueryFlags{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stats(cmd.Context(), *flags)
		},
	}
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the counters as JSON")
	return cmd
}

func createWatchCommand(c *command) *cobra.Command {
	flags := &WatchFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll status and stats until interrupted",
		Long: `Poll the bot every monitor interval and print changes.

With --listen, also serve GET /dashboard (JSON snapshot), /healthz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Watch(cmd.Context(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "exporter listen address (e.g. :9100)")
	cmd.Flags().StringVar(&flags.BasePath, "base-path", "", "exporter route prefix")
	return cmd
}

func createDashboardCommand(c *command) *cobra.Command {
	flags := &DashboardFlags{}
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Dashboard(cmd.Context(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "also serve the HTTP exporter on this address")
	return cmd
}

func createLoginCommand(c *command) *cobra.Command {
	flags := &LoginFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify and save the API endpoint and credentials",
		Long: `Check that the bot control API answers with the given credentials and
save them to ~/.botctl/session.json for later commands.

Examples:
  botctl login --api-url=https://bot.example.com/api/bot --token=$TOKEN
  botctl login --session-cookie="session=..." --expires-in=12h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.APIUrl == "" {
				flags.APIUrl = c.globals.APIUrl
			}
			return c.Login(cmd.Context(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.APIUrl, "server", "", "API base URL to save (defaults to --api-url or config)")
	cmd.Flags().StringVar(&flags.Token, "token", "", "bearer token")
	cmd.Flags().StringVar(&flags.SessionCookie, "session-cookie", "", "session cookie header value")
	cmd.Flags().DurationVar(&flags.ExpiresIn, "expires-in", 0, "forget the session after this long (0 = never)")
	return cmd
}

func createLogoutCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logout()
		},
	}
}
