package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/marginalia/internal/review"
)

var flagPersonasJSON bool

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Reviewer personas",
}

var personasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available reviewer personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{}
		if flagPersonasFile != "" {
			overrides["personasFile"] = flagPersonasFile
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			return err
		}
		all, err := review.LoadPersonas(cfg.PersonasFile)
		if err != nil {
			return usageError{err}
		}

		out := cmd.OutOrStdout()
		if flagPersonasJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tFOCUS\tMODEL")
		for _, p := range all {
			model := p.Model
			if model == "" {
				model = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, strings.Join(p.Focus, ", "), model)
		}
		return tw.Flush()
	},
}

func init() {
	personasCmd.AddCommand(personasListCmd)
	personasListCmd.Flags().BoolVar(&flagPersonasJSON, "json", false, "Print personas as JSON")
	personasListCmd.Flags().StringVar(&flagPersonasFile, "personas-file", "", "JSON persona pack replacing or extending the built-in personas")
}
