package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dshills/marginalia/internal/config"
	"github.com/dshills/marginalia/internal/document"
	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/output"
	"github.com/dshills/marginalia/internal/review"
)

// Review flags
var (
	flagPersonas     string
	flagPersonasFile string
	flagProvider     string
	flagModel        string
	flagFormat       string
	flagOut          string
	flagStream       bool
	flagNoRedact     bool
	flagMaxComments  int
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPersonas, "persona", "", "Personas to run (comma-separated ids; default: all)")
	cmd.Flags().StringVar(&flagPersonasFile, "personas-file", "", "JSON persona pack replacing or extending the built-in personas")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (ollama, openai, lmstudio, anthropic, gemini)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagStream, "stream", false, "Stream model output to stderr while reviewing")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().IntVar(&flagMaxComments, "max-comments", 0, "Maximum snippet comments per reviewer")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagPersonas != "" {
		m["personas"] = flagPersonas
	}
	if flagPersonasFile != "" {
		m["personasFile"] = flagPersonasFile
	}
	if flagMaxComments > 0 {
		m["maxComments"] = strconv.Itoa(flagMaxComments)
	}
	if flagStream {
		m["stream"] = "true"
	}
	if flagNoRedact {
		m["privacy.redactSecrets"] = "false"
	}
	return m
}

func splitComma(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// loadPersonas returns the roster from cfg and the subset cfg selects.
func loadPersonas(cfg config.Config) (all, selected []review.Persona, err error) {
	all, err = review.LoadPersonas(cfg.PersonasFile)
	if err != nil {
		return nil, nil, usageError{err}
	}
	selected, err = review.SelectPersonas(all, cfg.Personas)
	if err != nil {
		return nil, nil, usageError{err}
	}
	return all, selected, nil
}

// writeReport writes report to flagOut, or to the command's stdout.
func writeReport(cmd *cobra.Command, report *review.Report, format string) error {
	if flagOut != "" && flagOut != "-" {
		return output.WriteReport(report, format, flagOut)
	}
	w, err := output.GetWriter(format)
	if err != nil {
		return err
	}
	return w.Write(cmd.OutOrStdout(), report)
}

// streamPrinter prefixes each persona's streamed text on its own line.
type streamPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func (p *streamPrinter) print(persona, delta string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if persona != p.last {
		if p.last != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintf(p.w, "[%s] ", persona)
		p.last = persona
	}
	fmt.Fprint(p.w, delta)
}

// reviewExit maps a finished report to an exit code.
func reviewExit(report *review.Report) int {
	if !report.Failed() {
		return ExitSuccess
	}
	if len(report.Reviewers) > 0 {
		return ExitPartial
	}
	for _, f := range report.Failures {
		if !f.Auth {
			return ExitRuntimeError
		}
	}
	return ExitAuthError
}

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review a document with AI reviewer personas",
	Long: "Review a plain-text or Markdown document. Reads stdin when no file is given or\n" +
		"the file is \"-\". Exits 1 when some reviewers failed, 3 on provider auth errors.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		_, personas, err := loadPersonas(cfg)
		if err != nil {
			return err
		}
		if !cfg.Privacy.RedactSecrets {
			fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: secret redaction is disabled")
		}

		var doc document.Document
		if len(args) == 0 || args[0] == "-" {
			doc, err = document.Read(cmd.InOrStdin(), "stdin", int64(cfg.MaxDocumentBytes))
		} else {
			doc, err = document.Load(args[0], int64(cfg.MaxDocumentBytes))
		}
		if err != nil {
			return fail(ExitRuntimeError, err)
		}

		c, err := openCache(cfg)
		if err != nil {
			return fail(ExitRuntimeError, err)
		}
		opts := []review.Option{review.WithCache(c), review.WithVersion(version)}
		var printer *streamPrinter
		if cfg.Stream {
			printer = &streamPrinter{w: cmd.ErrOrStderr()}
			opts = append(opts, review.WithStreamSink(printer.print))
		}

		report, err := review.NewEngine(cfg, factoryFor(cfg), opts...).Run(cmd.Context(), doc, personas)
		if printer != nil && printer.last != "" {
			fmt.Fprintln(printer.w)
		}
		if err != nil {
			return failFor(err)
		}
		if err := report.Err(); err != nil {
			logging.Get().Warn().Err(err).Int("failed", len(report.Failures)).Msg("some reviewers failed")
		}

		if err := writeReport(cmd, report, cfg.Format); err != nil {
			return fail(ExitRuntimeError, fmt.Errorf("writing output: %w", err))
		}
		exitCode = reviewExit(report)
		return nil
	},
}

func init() {
	addReviewFlags(reviewCmd)
}
