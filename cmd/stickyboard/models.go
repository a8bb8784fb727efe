package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/HendryAvila/stickyboard/internal/board"
	sbserver "github.com/HendryAvila/stickyboard/internal/server"
	"github.com/spf13/cobra"
)

var (
	modelAPIBase string
	modelAPIKey  string
	modelNames   []string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage provider configurations",
}

var modelsSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Create or replace a provider configuration",
	Long: `Stores the API base, key and ordered model list of one provider.
The first model is used when a request names none. Omitting --api-key
keeps the key already stored for the provider.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := board.ModelConfig{
			Provider: strings.TrimSpace(args[0]),
			APIBase:  modelAPIBase,
			APIKey:   modelAPIKey,
			Models:   modelNames,
		}
		return withStore(cmd.Context(), func(ctx context.Context, app *sbserver.App) error {
			if err := app.Store.SaveModelConfig(ctx, m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved provider %q with %d model(s)\n", m.Provider, len(m.Models))
			return nil
		})
	},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider configurations with masked keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, app *sbserver.App) error {
			configs, err := app.Store.ModelConfigs(ctx)
			if err != nil {
				return err
			}
			return printModelConfigs(cmd, configs)
		})
	},
}

func printModelConfigs(cmd *cobra.Command, configs []board.ModelConfig) error {
	if len(configs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No providers configured. Add one with: stickyboard models set <provider>")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tAPI BASE\tAPI KEY\tMODELS")
	for _, c := range configs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Provider, c.APIBase, c.MaskedKey(), strings.Join(c.Models, ", "))
	}
	return tw.Flush()
}

func init() {
	modelsSetCmd.Flags().StringVar(&modelAPIBase, "api-base", "", "OpenAI-compatible API base URL")
	modelsSetCmd.Flags().StringVar(&modelAPIKey, "api-key", "", "API key")
	modelsSetCmd.Flags().StringSliceVar(&modelNames, "model", nil, "model identifier (repeatable, first is the default)")
	_ = modelsSetCmd.MarkFlagRequired("api-base")
	_ = modelsSetCmd.MarkFlagRequired("model")

	modelsCmd.AddCommand(modelsSetCmd, modelsListCmd)
}
