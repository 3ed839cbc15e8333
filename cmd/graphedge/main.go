// Command graphedge serves a GraphQL schema over HTTP.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set by the linker.
var (
	version = "dev"
	commit  = ""
)

const envPrefix = "GRAPHEDGE"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// subCommand pairs a cobra command with the viper instance holding its
// flags, environment and config file values.
type subCommand struct {
	Cmd  *cobra.Command
	Conf *viper.Viper
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "graphedge",
		Short: "graphedge: a GraphQL endpoint for a schema and its resolvers",
		Long: `
graphedge validates and executes GraphQL operations against a schema and
answers them over HTTP, as single JSON results or as multipart and
server-sent event streams for subscriptions.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().String("config", "",
		"Configuration file (yaml, json or toml). Environment variables and flags take precedence.")

	subcommands := []*subCommand{newServeCmd(), newSchemaCmd(), newVersionCmd()}
	for _, sc := range subcommands {
		sc.Conf = viper.New()
		cmd := sc.Cmd
		conf := sc.Conf
		if err := conf.BindPFlags(cmd.Flags()); err != nil {
			panic(err)
		}
		if err := conf.BindPFlags(root.PersistentFlags()); err != nil {
			panic(err)
		}
		conf.SetEnvPrefix(envPrefix)
		conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		conf.AutomaticEnv()
		cmd.PreRunE = func(*cobra.Command, []string) error {
			return readConfig(conf)
		}
		root.AddCommand(cmd)
	}
	return root
}

func readConfig(conf *viper.Viper) error {
	cfg := conf.GetString("config")
	if cfg == "" {
		return nil
	}
	conf.SetConfigFile(cfg)
	return errors.Wrapf(conf.ReadInConfig(), "reading config %s", cfg)
}

func newVersionCmd() *subCommand {
	sc := &subCommand{}
	sc.Cmd = &cobra.Command{
		Use:   "version",
		Short: "Print the graphedge version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return err
		},
	}
	return sc
}

func versionString() string {
	if commit == "" {
		return "graphedge " + version
	}
	return fmt.Sprintf("graphedge %s (%s)", version, commit)
}
