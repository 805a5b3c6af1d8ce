package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tvvoice/internal/bootstrap"
	"tvvoice/internal/domain"
	"tvvoice/internal/interpreter"
)

type interpretResult struct {
	Transcript string        `json:"transcript"`
	Normalized string        `json:"normalized"`
	Rule       string        `json:"rule,omitempty"`
	WakePhrase string        `json:"wakePhrase,omitempty"`
	Shortcut   bool          `json:"shortcut"`
	Intent     domain.Intent `json:"intent"`
}

func newInterpretCmd(opts *globalOptions) *cobra.Command {
	var (
		dates    []string
		networks []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "interpret <text>",
		Short: "Print the intent a transcript resolves to",
		Example: `  tvvoice interpret "show me NBC"
  tvvoice interpret --date "Friday, July 11" --date "Saturday, July 12" "show me saturday july 12"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			interp, _, err := bootstrap.NewInterpreter(cfg)
			if err != nil {
				return err
			}

			transcript := strings.Join(args, " ")
			ctx := interpreter.Context{Dates: dates, Networks: networks}
			intent, rule := interp.Explain(transcript, ctx)
			normalized := interp.Normalize(transcript)
			phrase, _ := interp.MatchWakePhrase(normalized)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(interpretResult{
					Transcript: transcript,
					Normalized: normalized,
					Rule:       rule,
					WakePhrase: phrase,
					Shortcut:   interpreter.IsShortcut(intent),
					Intent:     intent,
				})
			}

			fmt.Fprintf(out, "normalized: %s\n", normalized)
			if rule == "" {
				rule = "(none)"
			}
			fmt.Fprintf(out, "rule:       %s\n", rule)
			fmt.Fprintf(out, "intent:     %s\n", intent)
			if intent.Hint != "" {
				fmt.Fprintf(out, "hint:       %s\n", intent.Hint)
			}
			if phrase != "" {
				fmt.Fprintf(out, "wake:       %s\n", phrase)
			}
			if interpreter.IsShortcut(intent) {
				fmt.Fprintln(out, "shortcut:   yes")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&dates, "date", nil, "known date label, in selector order (repeatable)")
	cmd.Flags().StringArrayVar(&networks, "network", nil, "network from the loaded listings (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
