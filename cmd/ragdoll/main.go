package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/normanking/ragdoll/internal/preview"
	"github.com/normanking/ragdoll/internal/script"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	cfgFile  string
	logLevel string
	addr     string
	noStream bool
	theme    string
)

var rootCmd = &cobra.Command{
	Use:   "ragdoll",
	Short: "Ragdoll - an animated desk companion",
	Long: `Ragdoll runs an animated character with idle motion, moods, a focus
timer and a task list. Renderers and tools connect over a WebSocket stream.

Configuration:
  The runtime looks for configuration in:
  1. --config flag (explicit path)
  2. $HOME/.ragdoll/ragdoll.yaml
  3. ./ragdoll.yaml (current directory)

Environment Variables:
  RAGDOLL_LOG_LEVEL                - Log level (debug, info, warn, error)
  RAGDOLL_STREAM_ADDR              - Stream listen address
  RAGDOLL_TIMER_SESSION_MINUTES    - Focus session length`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the character and serve the event stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(appOptions{stream: true})
		if err != nil {
			return err
		}
		defer a.close()
		return a.run(ctx, nil)
	},
}

var playCmd = &cobra.Command{
	Use:   "play <script.yaml>",
	Short: "Play a choreography script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := script.Load(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(appOptions{stream: !noStream})
		if err != nil {
			return err
		}
		defer a.close()

		return a.run(ctx, func(ctx context.Context) error {
			return script.Play(ctx, s, a.loop, a.log.Component("script"))
		})
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the character in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		// Console logging would draw over the program.
		a, err := newApp(appOptions{stream: !noStream, quiet: true})
		if err != nil {
			return err
		}
		defer a.close()

		feed := preview.NewFeed()
		a.loop.AddObserver(feed)

		return a.run(ctx, func(ctx context.Context) error {
			p := tea.NewProgram(preview.New(feed, a.loop), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err := p.Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ragdoll %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ragdoll/ragdoll.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "stream listen address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "", "character theme (overrides config)")

	playCmd.Flags().BoolVar(&noStream, "no-stream", false, "do not serve the event stream")
	previewCmd.Flags().BoolVar(&noStream, "no-stream", false, "do not serve the event stream")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

const shutdownTimeout = 5 * time.Second
