package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conneroisu/grow/internal/services"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server with live reload",
	Long: `Start the development server. Pages are rendered on request and
browsers reload when pod files change.

Examples:
  grow serve                   # Serve on localhost:8080
  grow serve -p 3000           # Serve on another port
  grow serve --no-ui           # Do not inject the dev banner`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("no-ui", false, "Don't inject the dev banner and reload client")

	bindFlags(serveCmd.Flags(), map[string]string{
		"server.port": "port",
		"server.host": "host",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
		cfg.Development.UI = false
	}

	svc := services.NewServeService(cfg, logger)
	info := svc.GetServerInfo()
	cmd.Printf("Serving %s at %s\n", info.Root, color.CyanString(info.ServerURL))
	return svc.Serve(cmd.Context())
}
