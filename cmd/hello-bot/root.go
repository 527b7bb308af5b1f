package main

import (
	"fmt"
	"os"

	"github.com/Futuramistic/Bot/pkg/logging"
	"github.com/Futuramistic/Bot/pkg/session"
	"github.com/Futuramistic/Bot/pkg/spark"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by the subcommands of one invocation.
type app struct {
	v      *viper.Viper
	config Config
	logger zerolog.Logger
}

// newRootCommand builds the command tree with its own viper instance.
func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	setDefaults(a.v)

	root := &cobra.Command{
		Use:   "hello-bot",
		Short: "Spark help-desk bot",
		Long: `hello-bot answers Spark messages from an interactions table and
manages the webhooks and team memberships it depends on.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.hello-bot/config.yaml)")
	flags.StringP("token", "t", "", "Spark access token (default $SPARK_ACCESS_TOKEN)")
	flags.String("base-url", session.DefaultBaseURL, "Spark API base URL")
	flags.Duration("timeout", 0, "overall timeout per operation (0 = unbounded)")
	flags.Bool("wait-on-rate-limit", true, "wait and retry when rate limited")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human-readable log output")
	flags.StringP("output", "o", outputTable, "output format (table, json, yaml)")

	bind := map[string]string{
		keyConfig:          "config",
		keyAccessToken:     "token",
		keyBaseURL:         "base-url",
		keyTimeout:         "timeout",
		keyWaitOnRateLimit: "wait-on-rate-limit",
		keyLogLevel:        "log-level",
		keyLogPretty:       "log-pretty",
		keyOutput:          "output",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(newServeCommand(a))
	root.AddCommand(newWebhooksCommand(a))
	root.AddCommand(newMembershipsCommand(a))

	return root
}

// init reads configuration and sets up logging before any subcommand runs.
func (a *app) init(cmd *cobra.Command) error {
	if err := readConfigFile(a.v); err != nil {
		return err
	}

	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	a.config = cfg

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	a.logger = logging.NewLogger("hello-bot")

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug().Str("config_file", used).Msg("Using config file")
	}
	return nil
}

// api builds the Spark API from the resolved configuration.
func (a *app) api() (*spark.API, error) {
	return spark.New(a.config.sessionConfig())
}
