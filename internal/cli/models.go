package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/marginalia/internal/providers"
)

const doctorTimeout = 30 * time.Second

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models of the configured provider",
	Long: "List the models the provider reports (Ollama /api/tags, OpenAI-compatible /models).\n" +
		"Providers that cannot list models show their default model.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		p, err := factoryFor(cfg)(cfg.Provider, cfg.Model)
		if err != nil {
			return usageError{err}
		}
		lister, ok := p.(providers.ModelLister)
		if !ok {
			fmt.Fprintf(out, "%s:\n  - %s (default)\n", p.Name(), providers.DefaultModel(cfg.Provider))
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()
		models, err := lister.ListModels(ctx)
		if err != nil {
			return failFor(fmt.Errorf("listing %s models: %w", p.Name(), err))
		}
		fmt.Fprintf(out, "%s:\n", p.Name())
		for _, m := range models {
			if m.ModifiedAt.IsZero() {
				fmt.Fprintf(out, "  - %s\n", m.Name)
				continue
			}
			fmt.Fprintf(out, "  - %s (modified %s)\n", m.Name, m.ModifiedAt.Format(time.DateOnly))
		}
		return nil
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the provider is reachable and credentials work",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Checking %s...\n", cfg.Provider)

		p, err := factoryFor(cfg)(cfg.Provider, cfg.Model)
		if err != nil {
			return fail(ExitAuthError, err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()
		_, err = p.Complete(ctx, providers.Request{
			SystemPrompt: "Respond with exactly: ok",
			UserPrompt:   "ping",
			MaxTokens:    10,
		})
		if err != nil {
			return failFor(fmt.Errorf("%s: %w", p.Name(), err))
		}

		fmt.Fprintf(out, "OK: %s is configured and responding\n", p.Name())
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	for _, c := range []*cobra.Command{modelsListCmd, modelsDoctorCmd} {
		c.Flags().StringVar(&flagProvider, "provider", "", "Provider to use")
		c.Flags().StringVar(&flagModel, "model", "", "Model name")
	}
}
