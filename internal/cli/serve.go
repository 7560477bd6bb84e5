package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entrypoint"
)

func newServeCommand(version string, loadConfig func() *config.Config) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !debug {
				gin.SetMode(gin.ReleaseMode)
			}
			return entrypoint.Run(loadConfig(), version)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")
	return cmd
}
