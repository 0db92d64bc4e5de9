// Package cli implements the grist-mcp-server command line. The only
// command is serve, which speaks MCP over stdio; logging goes to stderr
// so it never mixes with the protocol stream.
package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/config"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/grist"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/server"
)

// NewRootCommand builds the root command.
func NewRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "grist-mcp-server",
		Short:         "MCP server for building and editing Grist pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	root.PersistentFlags().String("doc", "", "document id or URL")
	root.PersistentFlags().String("api-url", "", "Grist API base URL")
	root.PersistentFlags().String("api-key", "", "Grist API key")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Verbose)
			client, err := grist.NewClient(grist.Config{
				BaseURL:  cfg.APIURL,
				APIKey:   cfg.APIKey,
				DocID:    cfg.Doc,
				Timeout:  cfg.Timeout,
				CacheTTL: cfg.CacheTTL,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return server.New(client, logger).Run(cmd.Context())
		},
	}
	root.AddCommand(serve)

	// Running with no subcommand serves, which is what MCP client
	// configurations expect.
	root.RunE = serve.RunE
	return root
}

func newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}
