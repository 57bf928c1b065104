package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stemsi/examdrill/internal/client"
	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "drill",
		Short:        "Practice exams against an exam drill server",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("api", "http://localhost:8080", "Session API base URL")
	pf.StringP("lang", "l", "en", "UI language (en, zh)")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.Duration("timeout", 15*time.Second, "Timeout of each API call")

	root.AddCommand(practiceCmd(), sessionCmd(), exportCmd(), checkCmd())
	return root
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("DRILL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("drill")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/drill")
	_ = v.ReadInConfig()

	return v
}

// env is what every subcommand needs.
type env struct {
	v   *viper.Viper
	ctx context.Context
	log zerolog.Logger
	api *client.Client
}

func setup(cmd *cobra.Command) (*env, error) {
	v := viperForCmd(cmd)
	log := logger.Setup(v.GetString("log-level"), "pretty", "")

	lang := v.GetString("lang")
	if err := i18n.Init("en"); err != nil {
		return nil, err
	}
	ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(lang))

	api := client.New(v.GetString("api"), client.WithLanguage(lang))
	return &env{v: v, ctx: ctx, log: log, api: api}, nil
}

// call bounds one API call by the --timeout flag.
func (e *env) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.ctx, e.v.GetDuration("timeout"))
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
