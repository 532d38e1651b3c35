package cmd

import (
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conneroisu/grow/internal/catalog"
	"github.com/conneroisu/grow/internal/services"
)

var extractCmd = &cobra.Command{
	Use:     "extract",
	Aliases: []string{"x"},
	Short:   "Extract translatable messages",
	Long: `Extract tagged content fields and view gettext calls into
/translations/messages.pot. With --update the template is merged into
every locale catalog: new messages are added untranslated and messages
no longer in the template become obsolete.

Examples:
  grow extract                 # Write messages.pot
  grow extract --update        # Also update every locale's messages.po
  grow extract --update -L de  # Update only the German catalog`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("update", false, "merge the template into locale catalogs")
	extractCmd.Flags().StringSliceP("locale", "L", nil, "locales to update (default all pod locales)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	update, _ := cmd.Flags().GetBool("update")
	locales, _ := cmd.Flags().GetStringSlice("locale")

	p, err := services.OpenPod(cfg, logger, false)
	if err != nil {
		return err
	}
	template, extractErr := p.Extract(cmd.Context(), true)
	if template == nil {
		return extractErr
	}
	cmd.Printf("Extracted %s messages to %s\n",
		color.GreenString(humanize.Comma(int64(template.Len()))), catalog.TemplatePath)
	if extractErr != nil {
		cmd.PrintErrf("%s %v\n", color.YellowString("warning:"), extractErr)
	}
	if !update {
		return nil
	}

	stats, err := p.UpdateCatalogs(cmd.Context(), locales)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(stats))
	for locale := range stats {
		names = append(names, locale)
	}
	sort.Strings(names)
	for _, locale := range names {
		s := stats[locale]
		cmd.Printf("  %-8s %s added, %s updated, %s obsolete\n", locale,
			humanize.Comma(int64(s.Added)), humanize.Comma(int64(s.Updated)), humanize.Comma(int64(s.Obsolete)))
	}
	return nil
}
