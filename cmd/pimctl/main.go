// Command pimctl is the administrative CLI for the Pimify lifecycle API. It
// requests transitions, drives bulk campaigns, reads the audit ledger and manages
// reviewers. Settings come from flags, PIMCTL_* variables or ~/.pimctl.yaml.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// app carries settings and output shared by every command.
type app struct {
	v   *viper.Viper
	out io.Writer
}

func (a *app) client() *client {
	return newClient(a.v.GetString("server"), a.v.GetString("token"), a.v.GetDuration("timeout"))
}

func (a *app) json() bool {
	return a.v.GetString("output") == outputJSON
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "pimctl",
		Short:         "Pimify lifecycle administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			switch a.v.GetString("output") {
			case outputTable, outputJSON:
			default:
				return fmt.Errorf("unknown output %q (table or json)", a.v.GetString("output"))
			}
			if a.v.GetString("server") == "" {
				return errors.New("server is required (--server, PIMCTL_SERVER or ~/.pimctl.yaml)")
			}
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080/api", "API base URL")
	flags.String("token", "", "bearer token")
	flags.StringP("output", "o", outputTable, "output format: table or json")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.String("config", "", "config file (default ~/.pimctl.yaml)")
	for _, name := range []string{"server", "token", "output", "timeout", "config"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		transitionCmd(a),
		nextStatesCmd(a),
		campaignCmd(a),
		auditCmd(a),
		reviewersCmd(a),
	)
	return root
}

func (a *app) initConfig() error {
	a.v.SetEnvPrefix("PIMCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".pimctl")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && a.v.GetString("config") == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func main() {
	root := newRootCmd(os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
