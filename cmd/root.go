// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/observability"
)

// contextKey is the type for values stored in the command context.
type contextKey string

// configKey addresses the loaded *config.Config in the command context,
// placed there by the root PersistentPreRunE for subcommands to pick up.
const configKey contextKey = "config"

// newRootCmd builds a fresh root command with every subcommand attached.
// A new instance per execution keeps flag and viper state from leaking
// between runs.
func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "pocketd",
		Short: "Pocket AI is a local assistant with chat, voice and a browser agent.",
		Long: `Pocket AI runs entirely against a local model server. It answers chat
requests, routes utterances to functions like smart home control and web
search, reads answers aloud, and can drive a visible browser session to
carry out tasks on the web.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// A fallback logger so the failure itself is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pocketd"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting pocketd.", zap.String("version", Version))

			// Hand the validated config to subcommands through the context.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ~/.pocketd/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "pocketd version %s\n" .Version}}`)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBriefingCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newTokenCmd())

	return rootCmd
}

// Execute runs the CLI against a signal-aware context. The caller maps the
// returned error to an exit code.
func Execute(ctx context.Context) error {
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed.", zap.Error(err))
		}
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// initializeConfig points viper at the config file and the environment.
// A missing config file is fine; defaults and env vars carry the run.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pocketd"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("POCKETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// getConfigFromContext retrieves the config placed by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration missing from command context")
	}
	return cfg, nil
}
