package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gemterm/gemterm/internal/config"
)

const defaultModel = "gemini-1.5-flash"

var defaultConfigYAML = `# gemterm configuration. ${VAR} references are expanded from the environment.
api_key: ` + config.PlaceholderKey + `
model: ` + defaultModel + `

safety_settings:
  HARM_CATEGORY_HARASSMENT: BLOCK_MEDIUM_AND_ABOVE
  HARM_CATEGORY_HATE_SPEECH: BLOCK_MEDIUM_AND_ABOVE
  HARM_CATEGORY_SEXUALLY_EXPLICIT: BLOCK_MEDIUM_AND_ABOVE
  HARM_CATEGORY_DANGEROUS_CONTENT: BLOCK_MEDIUM_AND_ABOVE

generation_config:
  temperature: 1
  top_p: 0.95
  top_k: 64
  max_output_tokens: 8192

timeout: 120
retries: 1

render:
  engine: markup       # markup or glamour
  rules: quote         # quote or plain
  substitution: span   # span or literal
  color: auto          # auto, always or never
`

// configTemplate fills the default config with a key and a model. An empty
// key keeps the placeholder so Load keeps pointing at the setup hint.
func configTemplate(apiKey, model string) string {
	out := defaultConfigYAML
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		out = strings.Replace(out, "api_key: "+config.PlaceholderKey, "api_key: "+apiKey, 1)
	}
	if model = strings.TrimSpace(model); model != "" && model != defaultModel {
		out = strings.Replace(out, "model: "+defaultModel, "model: "+model, 1)
	}
	return out
}

var accent = lipgloss.Color("#4285F4")

func initTheme() *huh.Theme {
	theme := huh.ThemeCharm()
	theme.FieldSeparator = lipgloss.NewStyle()
	theme.Focused.Title = theme.Focused.Title.Foreground(accent).Bold(true)
	theme.Focused.Base = theme.Focused.Base.BorderForeground(accent)
	return theme
}

func askKeyAndModel() (string, string, error) {
	key, model := "", defaultModel

	theme := initTheme()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("gemterm").Description("Create a key at https://aistudio.google.com/app/apikey\nLeave it empty to fill it in later."),
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&key),
			huh.NewSelect[string]().
				Title("Model").
				Options(huh.NewOptions(knownModels...)...).
				Value(&model),
		),
	).WithTheme(theme).WithWidth(64)

	if err := form.Run(); err != nil {
		return "", "", err
	}
	return key, model, nil
}

func init() {
	var force, noInput bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config to ~/.gemterm/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Println("Exists", path)
				return nil
			}

			key, model := "", defaultModel
			if !noInput && stdinIsTTY() {
				var err error
				if key, model, err = askKeyAndModel(); err != nil {
					return err
				}
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(configTemplate(key, model)), 0o600); err != nil {
				return err
			}
			fmt.Println("Created", path)
			if strings.TrimSpace(key) == "" {
				fmt.Printf(apiKeyHint+"\n", path)
			}
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	initCmd.Flags().BoolVar(&noInput, "no-input", false, "Skip the interactive form")
	rootCmd.AddCommand(initCmd)
}
