package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/exitcode"
	"github.com/samsaffron/streamchat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear the saved conversation",
	Long: `Show, search, export or clear the conversation saved by chat and ask.

Examples:
  streamchat history                      # same as history show
  streamchat history search "goroutine"
  streamchat history export chat.md
  streamchat history clear --yes`,
	RunE: runHistoryShow,
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistoryShow,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Fuzzy search the saved conversation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

var historyExportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export the conversation as markdown (stdout when no path is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryExport,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var (
	historyJSON  bool
	historyYes   bool
	historyLimit int
)

func init() {
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the stored JSON instead")
	historySearchCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Maximum matches to show")
	historyClearCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "Do not ask for confirmation")

	historyCmd.AddCommand(historyShowCmd, historySearchCmd, historyExportCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

// withHistory opens the saved conversation without any transport.
func withHistory(fn func(ctx context.Context, s *conversation.Session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, os.Stderr); err != nil {
		return err
	}
	ctx := context.Background()
	session, st, err := openSession(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, session)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	return withHistory(func(ctx context.Context, s *conversation.Session) error {
		conv := s.Conversation()
		if historyJSON {
			data, err := conv.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), data)
			return nil
		}
		writeTranscript(cmd.OutOrStdout(), conv.Turns(), ui.DefaultStyles())
		return nil
	})
}

func writeTranscript(w io.Writer, turns []conversation.Turn, styles *ui.Styles) {
	if len(turns) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("No saved conversation."))
		return
	}
	for i, turn := range turns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		switch turn.Role {
		case conversation.RoleUser:
			fmt.Fprintln(w, styles.User.Render(ui.UserIcon+" You"))
		default:
			fmt.Fprintln(w, styles.Assistant.Render(ui.ReplyIcon+" Assistant"))
		}
		fmt.Fprintln(w, strings.TrimRight(turn.Content, "\n"))
	}
}

// turnSource adapts turns for fuzzy matching on their content.
type turnSource []conversation.Turn

func (s turnSource) String(i int) string { return s[i].Content }
func (s turnSource) Len() int            { return len(s) }

func searchTurns(turns []conversation.Turn, pattern string, limit int) fuzzy.Matches {
	matches := fuzzy.FindFrom(pattern, turnSource(turns))
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	pattern := strings.Join(args, " ")
	return withHistory(func(ctx context.Context, s *conversation.Session) error {
		turns := s.Turns()
		matches := searchTurns(turns, pattern, historyLimit)
		w := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintf(w, "No messages match %q.\n", pattern)
			return nil
		}

		width := 100
		if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 20 {
			width = tw
		}
		for _, m := range matches {
			turn := turns[m.Index]
			snippet := strings.Join(strings.Fields(turn.Content), " ")
			prefix := fmt.Sprintf("#%-3d %-9s ", m.Index+1, turn.Role)
			fmt.Fprintln(w, prefix+ui.TruncateWidth(snippet, width-len(prefix)))
		}
		return nil
	})
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	return withHistory(func(ctx context.Context, s *conversation.Session) error {
		md := conversation.ExportToMarkdown(s.Conversation(), time.Now())
		if len(args) == 0 || args[0] == "-" {
			_, err := io.WriteString(cmd.OutOrStdout(), md)
			return err
		}
		if err := os.WriteFile(args[0], []byte(md), 0644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d messages to %s\n", s.Conversation().Len(), args[0])
		return nil
	})
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	return withHistory(func(ctx context.Context, s *conversation.Session) error {
		n := len(s.Turns())
		if n == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No saved conversation.")
			return nil
		}
		if !historyYes {
			ok, err := ui.Confirm(fmt.Sprintf("Delete %d saved messages?", n))
			if err != nil {
				return err
			}
			if !ok {
				return exitcode.Declined("history kept")
			}
		}
		if err := s.Clear(ctx); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), ui.DefaultStyles().FormatResult(true, fmt.Sprintf("Deleted %d messages", n)))
		return nil
	})
}
