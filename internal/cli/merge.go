package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dshills/marginalia/internal/document"
	"github.com/dshills/marginalia/internal/feedback"
	"github.com/dshills/marginalia/internal/review"
)

// mergeReport builds a report from reviewer results keyed by reviewer id.
// Reviewers are processed in sorted key order. A result that fails
// validation becomes a Failure and is left out of the merge.
func mergeReport(doc document.Document, results map[string]json.RawMessage, roster []review.Persona) *review.Report {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := &review.Report{
		Tool:     review.ToolName,
		Version:  version,
		Document: review.DocumentInfo{Name: doc.Name, Text: doc.Text, Bytes: len(doc.Text)},
	}
	for _, id := range ids {
		p := review.Persona{ID: id, Name: id}
		if known := review.FindPersona(roster, id); known != nil {
			p = *known
		}
		report.Personas = append(report.Personas, p)

		res, err := feedback.Parse(string(results[id]))
		if err != nil {
			report.Failures = append(report.Failures, review.Failure{
				Persona: p,
				Error:   err.Error(),
				Invalid: true,
			})
			continue
		}
		report.Reviewers = append(report.Reviewers, review.ReviewerResult{Persona: p, Result: res})
	}
	report.Regions, report.Dropped = review.MergeResults(doc.Text, report.Reviewers)
	report.Summary = review.ComputeSummary(report)
	return report
}

var mergeCmd = &cobra.Command{
	Use:   "merge <document> <results.json>",
	Short: "Merge saved reviewer results into an annotated report",
	Long: "Merge reviewer results offline. results.json maps reviewer ids to result objects\n" +
		"({\"scores\":{...},\"snippetFeedback\":[...],\"generalComments\":[...]}). Invalid\n" +
		"results are reported per reviewer and skipped.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		roster, err := review.LoadPersonas(cfg.PersonasFile)
		if err != nil {
			return usageError{err}
		}

		doc, err := document.Load(args[0], int64(cfg.MaxDocumentBytes))
		if err != nil {
			return fail(ExitRuntimeError, err)
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fail(ExitRuntimeError, fmt.Errorf("reading results: %w", err))
		}
		var results map[string]json.RawMessage
		if err := json.Unmarshal(data, &results); err != nil {
			return usageError{fmt.Errorf("parsing results %s: %w", args[1], err)}
		}

		report := mergeReport(doc, results, roster)
		for _, f := range report.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %s\n", f.Persona.ID, f.Error)
		}
		if err := writeReport(cmd, report, cfg.Format); err != nil {
			return fail(ExitRuntimeError, fmt.Errorf("writing output: %w", err))
		}
		if report.Failed() {
			exitCode = ExitPartial
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown)")
	mergeCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	mergeCmd.Flags().StringVar(&flagPersonasFile, "personas-file", "", "JSON persona pack used to name reviewers")
}
