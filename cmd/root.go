package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawlite/internal/config"
	"github.com/nextlevelbuilder/clawlite/internal/sessions"
	"github.com/nextlevelbuilder/clawlite/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/clawlite/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "clawlite",
	Short: "ClawLite — single-operator AI agent runtime",
	Long:  "ClawLite: a single-operator AI agent runtime with channel integration, scheduled check-ins, and tool execution, all running as one process against your own workspace.",
	Run: func(cmd *cobra.Command, args []string) {
		runGateway()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $CLAWLITE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(chatCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clawlite %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func chatCmd() *cobra.Command {
	var agentName string
	var message string
	var sessionKey string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent directly from the terminal, without starting the gateway",
		Run: func(cmd *cobra.Command, args []string) {
			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})))

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
				os.Exit(1)
			}

			if agentName == "" {
				agentName = cfg.ResolveDefaultAgentID()
			}
			if sessionKey == "" {
				sessionKey = sessions.BuildSessionKey(agentName, "cli", sessions.PeerDirect, "local")
			}

			runStandaloneMode(cfg, agentName, message, sessionKey)
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent to chat with (default: the configured default agent)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "send a single message and print the reply (omit for an interactive REPL)")
	cmd.Flags().StringVar(&sessionKey, "session", "", "session key to resume (default: a fresh local CLI session)")
	return cmd
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("CLAWLITE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
