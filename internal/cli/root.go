// Package cli defines the librarian command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/logging"
)

// Options configures the command tree.
type Options struct {
	Version string
	Commit  string

	// LoadConfig defaults to config.NewConfig.
	LoadConfig func() *config.Config
}

// NewRootCommand builds the root command. Running it without a subcommand
// starts the server.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.NewConfig
	}

	var cfg *config.Config
	loadConfig := func() *config.Config {
		if cfg == nil {
			cfg = opts.LoadConfig()
		}
		return cfg
	}

	root := &cobra.Command{
		Use:           "librarian",
		Short:         "Library management API",
		Version:       opts.Version + " (" + opts.Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c := loadConfig()
			logging.SetDefault(logging.New(logging.Options{
				ServiceName: config.ServiceName,
				Level:       logging.ParseLevel(c.Log.Level),
				Format:      c.Log.Format,
				Output:      cmd.ErrOrStderr(),
			}))
		},
	}

	serve := newServeCommand(opts.Version, loadConfig)
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		newCreateAdminCommand(loadConfig),
		newMigrateCommand(loadConfig),
		newSeedCommand(loadConfig),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(opts Options) error {
	return NewRootCommand(opts).Execute()
}
