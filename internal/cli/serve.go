package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/spacesync/internal/server"
)

type serveOptions struct {
	port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP sync server",
		Long: `Run the HTTP sync server until SIGINT or SIGTERM.

JWT_SECRET (or auth.jwt_secret in the config file) must be set.
Migrations are applied on start unless database.auto_migrate is false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port (default 8080)")

	return cmd
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions, opts *serveOptions) error {
	cfg, err := rootOpts.load(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = opts.port
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	// Logs go to stderr so stdout stays free for command output.
	log, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	srv, err := server.New(cmd.Context(), cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
