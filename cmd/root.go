package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gemterm/gemterm/internal/config"
	"github.com/gemterm/gemterm/internal/system"
)

var (
	configPath string
	debugMode  bool
	imageMode  bool
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:   "gemterm",
	Short: "gemterm — chat with Gemini in your terminal",
	Long: `gemterm — chat with Gemini from the terminal, with markdown replies
rendered as ANSI-styled text.

Quick Start:
  gemterm init                    # write ~/.gemterm/config.yaml
  gemterm                         # start a text chat
  gemterm --image                 # ask questions about images
  gemterm render notes.md         # render a markdown file offline

Examples:
  gemterm --session 3f9a1c2e      # resume a saved conversation
  cat reply.md | gemterm render -
  gemterm --config ./keys.json    # JSON, YAML and TOML configs all work`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown argument: %s", args[0])
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		system.SetDebug(debugMode)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(imageMode, sessionID)
	},
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.gemterm/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log HTTP traffic and rendering diagnostics to stderr")
	rootCmd.Flags().BoolVar(&imageMode, "image", false, "Ask about an image instead of chatting")
	rootCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Resume a saved session")
}

const apiKeyHint = `To use the Gemini API, you'll need an API key.
If you don't already have one, create a key in Google AI Studio:
  https://aistudio.google.com/app/apikey
then save it as api_key in %s.`

// loadConfig resolves the config file and turns load failures into
// user-facing errors.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, config.ErrNotFound):
		return nil, fmt.Errorf("%w (run 'gemterm init' first)", err)
	case errors.Is(err, config.ErrPlaceholderKey):
		return nil, fmt.Errorf("%w\n"+apiKeyHint, err, path)
	}
	return nil, err
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
