package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gemterm/gemterm/internal/markup"
	"github.com/gemterm/gemterm/internal/style"
)

func listStyles(w io.Writer, color bool) {
	for _, name := range style.Names() {
		sample := style.Resolve(name) + "sample" + style.Resolve()
		fmt.Fprintf(w, "  %-20s %s\n", name, paint(sample, color))
	}
}

func listRules(w io.Writer, set markup.RuleSet) {
	fmt.Fprintf(w, "Rules (%s):\n", set)
	for i, name := range markup.New(markup.WithRuleSet(set)).Rules() {
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}
}

func init() {
	var rules string
	stylesCmd := &cobra.Command{
		Use:   "styles",
		Short: "List style names and the markup rules that use them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := markup.ParseRuleSet(rules)
			if err != nil {
				return err
			}
			listStyles(os.Stdout, colorEnabled("auto", os.Stdout))
			fmt.Println()
			listRules(os.Stdout, set)
			return nil
		},
	}
	stylesCmd.Flags().StringVar(&rules, "rules", "", "Rule set to list: quote or plain")
	rootCmd.AddCommand(stylesCmd)
}
