package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/history"
	"github.com/diogo/nanogenius/internal/media"
	"github.com/diogo/nanogenius/internal/models"
)

func newSessionsCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"history"},
		Short:   "Manage saved conversations",
		Long:    `View and manage the conversations kept in session storage.

` + history.ListAliases(),
	}

	// withSessions opens storage around fn
	withSessions := func(fn func(*sessionState, config.Config, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			closer, err := setupLogging(cfg, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			state, err := openSessions(cfg)
			if err != nil {
				return err
			}
			defer state.Close()
			return fn(state, cfg, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all conversations",
		Args:  cobra.NoArgs,
		RunE: withSessions(func(state *sessionState, _ config.Config, _ []string) error {
			return listSessions(deps, state)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <ref>",
		Short: "Show a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(func(state *sessionState, _ config.Config, args []string) error {
			id, err := resolveRef(state, args[0])
			if err != nil {
				return err
			}
			return showSession(deps, state, id)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <ref>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(func(state *sessionState, _ config.Config, args []string) error {
			id, err := resolveRef(state, args[0])
			if err != nil {
				return err
			}
			if !state.sessions.Delete(id) {
				return fmt.Errorf("conversation not found: %s", id)
			}
			fmt.Fprintf(deps.Stdout, "Deleted conversation: %s\n", id)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all conversations",
		Args:  cobra.NoArgs,
		RunE: withSessions(func(state *sessionState, _ config.Config, _ []string) error {
			state.sessions.Clear()
			fmt.Fprintln(deps.Stdout, "All conversations deleted.")
			return nil
		}),
	})

	var exportDir string
	export := &cobra.Command{
		Use:   "export-images <ref>",
		Short: "Save the images of a conversation to disk",
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(func(state *sessionState, cfg config.Config, args []string) error {
			id, err := resolveRef(state, args[0])
			if err != nil {
				return err
			}
			dir := exportDir
			if dir == "" {
				var err error
				if dir, err = config.GetDownloadDir(cfg); err != nil {
					return err
				}
			}
			return exportImages(deps, state, id, dir)
		}),
	}
	export.Flags().StringVarP(&exportDir, "dir", "d", "", "Target directory (defaults to the download directory)")
	cmd.AddCommand(export)

	var (
		format        string
		outFile       string
		includeImages bool
		includeErrors bool
	)
	exportCmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a conversation as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(func(state *sessionState, _ config.Config, args []string) error {
			f, err := history.ParseExportFormat(format)
			if err != nil {
				return err
			}
			id, err := resolveRef(state, args[0])
			if err != nil {
				return err
			}
			s, _ := state.sessions.Get(id)
			data, err := history.Export(s, history.ExportOptions{
				Format:        f,
				IncludeImages: includeImages,
				IncludeErrors: includeErrors,
			})
			if err != nil {
				return err
			}
			if outFile == "" {
				_, err = deps.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Exported to "+outFile))
			return nil
		}),
	}
	exportCmd.Flags().StringVar(&format, "format", "markdown", "Output format (markdown, json)")
	exportCmd.Flags().StringVarP(&outFile, "output", "o", "", "Write to a file instead of stdout")
	exportCmd.Flags().BoolVar(&includeImages, "images", false, "Embed images as data URLs")
	exportCmd.Flags().BoolVar(&includeErrors, "errors", false, "Keep failed replies")
	cmd.AddCommand(exportCmd)

	var searchContent bool
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find conversations by title or content",
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(func(state *sessionState, _ config.Config, args []string) error {
			results := history.Search(state.sessions.Sessions(), args[0], searchContent)
			if len(results) == 0 {
				fmt.Fprintln(deps.Stdout, "No conversations found.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(deps.Stdout, "%s  %s\n", r.Session.ID, r.Session.Title)
				if r.MatchField == "content" {
					fmt.Fprintf(deps.Stdout, "    %s\n", dimStyle.Render(r.MatchSnippet))
				}
			}
			return nil
		}),
	}
	searchCmd.Flags().BoolVarP(&searchContent, "content", "c", true, "Search message text as well as titles")
	cmd.AddCommand(searchCmd)

	return cmd
}

func listSessions(deps *Dependencies, state *sessionState) error {
	sessions := state.sessions.Sessions()
	currentID := state.sessions.CurrentID()

	w := tabwriter.NewWriter(deps.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t--------\t-------")

	for _, s := range sessions {
		marker := ""
		if s.ID == currentID {
			marker = " *"
		}
		_, _ = fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\n",
			s.ID, marker, models.Preview(s.Title, 40), len(s.Messages), formatMillis(s.UpdatedAt, "2006-01-02 15:04"))
	}

	return w.Flush()
}

func showSession(deps *Dependencies, state *sessionState, id string) error {
	s, ok := state.sessions.Get(id)
	if !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}

	out := deps.Stdout
	fmt.Fprintf(out, "ID: %s\n", s.ID)
	fmt.Fprintf(out, "Title: %s\n", s.Title)
	fmt.Fprintf(out, "Updated: %s\n", formatMillis(s.UpdatedAt, "2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Messages: %d\n", len(s.Messages))
	fmt.Fprintln(out)

	for i, msg := range s.Messages {
		role := "You"
		if msg.Role == models.RoleModel {
			role = "NanoGenius"
		}
		fmt.Fprintf(out, "[%d] %s (%s):\n", i+1, role, formatMillis(msg.Timestamp, "15:04"))

		if msg.ImageURL != "" {
			fmt.Fprintln(out, "  🖼 [image]")
		}
		if msg.Text != "" {
			fmt.Fprintf(out, "  %s\n", models.TruncateRunes(msg.Text, 500))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func exportImages(deps *Dependencies, state *sessionState, id, dir string) error {
	s, ok := state.sessions.Get(id)
	if !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}

	saved := 0
	for i, msg := range s.Messages {
		if msg.Role != models.RoleModel || !models.IsDataURL(msg.ImageURL) {
			continue
		}
		name := fmt.Sprintf("%s_%02d", models.TruncateRunes(s.ID, 8), i+1)
		path, err := media.SaveDataURL(msg.ImageURL, dir, name)
		if err != nil {
			return fmt.Errorf("failed to save image %d: %w", i+1, err)
		}
		fmt.Fprintln(deps.Stdout, path)
		saved++
	}

	if saved == 0 {
		fmt.Fprintln(deps.Stderr, "No generated images in this conversation.")
	}
	return nil
}

func resolveRef(state *sessionState, ref string) (string, error) {
	return history.NewResolver(state.sessions).Resolve(ref)
}

func formatMillis(ms int64, layout string) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(layout)
}
