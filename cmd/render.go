package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gemterm/gemterm/internal/config"
	"github.com/gemterm/gemterm/internal/system"
)

// renderConfig loads the config for offline rendering. No config file is
// fine here; defaults apply.
func renderConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, config.ErrNotFound), errors.Is(err, config.ErrPlaceholderKey):
		system.Logger.Debug("rendering with default settings", "reason", err)
		return config.Default(), nil
	}
	var missing *config.MissingFieldError
	if errors.As(err, &missing) {
		system.Logger.Debug("rendering with default settings", "reason", err)
		return config.Default(), nil
	}
	return nil, err
}

func renderTo(w io.Writer, r io.Reader, rc config.RenderConf, color bool) error {
	text, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	rend, err := buildRenderer(rc, termWidth())
	if err != nil {
		return err
	}
	out, err := rend.Render(string(text))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, paint(out, color))
	return err
}

func init() {
	var rules, engineName, subst string
	renderCmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render markdown from a file or stdin without calling the model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := renderConfig()
			if err != nil {
				return err
			}
			rc := cfg.Render
			if rules != "" {
				rc.Rules = rules
			}
			if engineName != "" {
				rc.Engine = engineName
			}
			if subst != "" {
				rc.Substitution = subst
			}

			in := io.Reader(os.Stdin)
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("render: %w", err)
				}
				defer f.Close()
				in = f
			}
			return renderTo(os.Stdout, in, rc, colorEnabled(rc.Color, os.Stdout))
		},
	}
	renderCmd.Flags().StringVar(&rules, "rules", "", "Rule set: quote or plain")
	renderCmd.Flags().StringVar(&engineName, "engine", "", "Renderer: markup or glamour")
	renderCmd.Flags().StringVar(&subst, "substitution", "", "Substitution: span or literal")
	rootCmd.AddCommand(renderCmd)
}
