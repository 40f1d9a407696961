package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/buildtall-systems/zapdesk/internal/config"
	"github.com/buildtall-systems/zapdesk/internal/lightning"
	"github.com/buildtall-systems/zapdesk/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zapdesk",
	Short: "Lightning tips for helpdesk agents",
	Long: `zapdesk resolves a support agent's Lightning Address into a payable
invoice (LNURL-pay, LUD-06/LUD-16) and keeps a local ledger of issued tips.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./zapdesk.yaml or $HOME/.zapdesk.yaml)")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.String("db", "", "path to the tip ledger")
	flags.Duration("timeout", 0, "per-request timeout")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"verbose":           "verbose",
		"log.level":         "log-level",
		"log.format":        "log-format",
		"database.path":     "db",
		"lightning.timeout": "timeout",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", flag, err)
			}
		}
	}

	viper.SetEnvPrefix("ZAPDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("zapdesk")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// env is what every subcommand needs after configuration is read.
type env struct {
	cfg    *config.Config
	log    *logrus.Logger
	client *lightning.Client
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())

	client := lightning.NewClient(
		lightning.WithTimeout(cfg.Lightning.Timeout),
		lightning.WithValidityWindow(cfg.Lightning.ValidityWindow),
		lightning.WithScheme(cfg.Lightning.Scheme),
		lightning.WithUserAgent(cfg.Lightning.UserAgent),
		lightning.WithLogger(logger),
	)

	return &env{cfg: cfg, log: logger, client: client}, nil
}
