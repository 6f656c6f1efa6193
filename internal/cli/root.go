// Package cli holds the spacesync command tree.
//
//	spacesync serve   [--port N]   run the HTTP sync server
//	spacesync migrate              apply database migrations and exit
//
// Both commands share the persistent flags below. Settings resolve as
// defaults → --config file → environment → flags.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/spacesync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Driver     string
	DSN        string

	getenv func(string) string
}

// NewRootCommand creates the root command, reading the real environment.
func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Getenv)
}

func newRootCommand(getenv func(string) string) *cobra.Command {
	opts := &RootOptions{getenv: getenv}

	cmd := &cobra.Command{
		Use:   "spacesync",
		Short: "spacesync - multi-device sync server",
		Long: `spacesync keeps spaces, categories, items and preferences in step across
a user's devices. Conflicts are resolved last-writer-wins on updatedAt.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // main prints the error once
	}

	opts.bindFlags(cmd)

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// bindFlags registers the global flags on cmd.
func (o *RootOptions) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.ConfigPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&o.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&o.LogFormat, "log-format", "", "log format (text|json)")
	flags.StringVar(&o.Driver, "db-driver", "", "database driver (sqlite|postgres)")
	flags.StringVar(&o.DSN, "dsn", "", "database file (sqlite) or connection URL (postgres)")
}

// load resolves the configuration for cmd. Flags override only when the user
// actually set them, so an unset flag never clobbers the file or environment.
func (o *RootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, o.getenv)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.LogFormat
	}
	if flags.Changed("db-driver") {
		cfg.Database.Driver = o.Driver
	}
	if flags.Changed("dsn") {
		cfg.Database.DSN = o.DSN
	}
	return cfg, nil
}
