package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemterm/gemterm/internal/provider"
	"github.com/gemterm/gemterm/internal/session"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved conversations",
	}

	sessionCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all saved sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session.Cleanup()
			sessions, err := session.List()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions.")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("  %-8s  %-24s  %s  (%d msgs)\n",
					s.ID, s.Model,
					s.UpdatedAt.Format("2006-01-02 15:04"),
					len(s.Messages))
			}
			return nil
		},
	})

	var full bool
	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a session, optionally with its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("ID:         %s\n", s.ID)
			fmt.Printf("Model:      %s\n", s.Model)
			fmt.Printf("Created:    %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Updated:    %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Messages:   %d\n", len(s.Messages))
			if !full {
				return nil
			}
			cfg, err := renderConfig()
			if err != nil {
				return err
			}
			r, err := buildRenderer(cfg.Render, termWidth())
			if err != nil {
				return err
			}
			color := colorEnabled(cfg.Render.Color, cmd.OutOrStdout())
			for _, msg := range s.Messages {
				fmt.Println()
				text := msg.Text()
				if msg.Role == provider.RoleModel {
					if out, err := r.Render(text); err == nil {
						text = out
					}
					fmt.Println(paint(sInfo.Render("gemini ▸"), color))
				} else {
					fmt.Println(paint(sPrompt.Render("you ▸"), color))
				}
				fmt.Println(paint(text, color))
			}
			return nil
		},
	}
	showCmd.Flags().BoolVar(&full, "full", false, "Print the rendered transcript")
	sessionCmd.AddCommand(showCmd)

	sessionCmd.AddCommand(&cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	})

	rootCmd.AddCommand(sessionCmd)
}
