package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/router"
	"github.com/conneroisu/grow/internal/services"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"r"},
	Short:   "List the pod's routes",
	Long: `List every route of the pod with its kind, source file and locale.
Documents that fail to load are reported after the listing.

Examples:
  grow routes                  # Table of routes
  grow routes --format json    # JSON for scripting
  grow routes --kind static    # Only static routes`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	routesCmd.Flags().String("kind", "", "only list routes of this kind (doc, static, sitemap)")
}

type routeEntry struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	PodPath string `json:"pod_path,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	kind, _ := cmd.Flags().GetString("kind")

	p, err := services.OpenPod(cfg, logger, false)
	if err != nil {
		return err
	}
	loadErr := p.LoadRoutes(cmd.Context())
	var bulk *errors.BulkErrors
	if loadErr != nil && !errors.As(loadErr, &bulk) {
		return loadErr
	}

	routes := p.Router().Routes()
	if kind != "" {
		routes = p.Router().Filter(router.Kind(kind))
	}
	entries := make([]routeEntry, 0, len(routes))
	for _, route := range routes {
		entries = append(entries, routeEntry{
			Path:    route.Pattern,
			Kind:    string(route.Kind),
			PodPath: route.Meta.PodPath,
			Locale:  route.Meta.Locale,
		})
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entries); err != nil {
			return err
		}
	case "text":
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", color.GreenString("PATH"), color.GreenString("KIND"), color.GreenString("LOCALE"), color.GreenString("POD PATH"))
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Path, kindColor(e.Kind), e.Locale, e.PodPath)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}

	if bulk != nil {
		for _, item := range bulk.Errors() {
			cmd.PrintErrf("%s %s\n", color.RedString("error:"), item.Error())
		}
		return bulk
	}
	return nil
}

func kindColor(kind string) string {
	switch router.Kind(kind) {
	case router.KindDoc:
		return color.CyanString(kind)
	case router.KindStatic:
		return color.YellowString(kind)
	default:
		return color.MagentaString(kind)
	}
}
