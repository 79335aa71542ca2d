// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/history"
	"github.com/jeranaias/strand/internal/registry"
)

var (
	historyLimit int
	historyDays  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the local exchange archive",
	Long: `Browse the local exchange archive.

Every completed exchange (prompt plus assistant response) is written to a
local SQLite database so past conversations survive server-side pruning.`,
}

var historyRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent archived exchanges",
	RunE:  runHistoryRecent,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <term>...",
	Short: "Search archived exchanges by title, prompt, or response",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archived exchanges older than the retention window",
	RunE:  runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyRecentCmd, historySearchCmd, historyPruneCmd)
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of results")
	historyPruneCmd.Flags().IntVar(&historyDays, "days", 0, "Retention in days (default: config history.retention_days)")
}

func runHistoryRecent(cmd *cobra.Command, args []string) error {
	a, err := newHistoryApp()
	if err != nil {
		return err
	}
	defer a.close()

	exchanges, err := a.archive.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	printExchanges(exchanges)
	return nil
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	a, err := newHistoryApp()
	if err != nil {
		return err
	}
	defer a.close()

	exchanges, err := a.archive.Search(cmd.Context(), strings.Join(args, " "), historyLimit)
	if err != nil {
		return err
	}
	printExchanges(exchanges)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	a, err := newHistoryApp()
	if err != nil {
		return err
	}
	defer a.close()

	days := historyDays
	if days == 0 {
		days = a.cfg.History.RetentionDays
	}
	if days <= 0 {
		fmt.Println(noticeStyle.Render("no retention window configured; nothing pruned"))
		return nil
	}

	pruned, err := a.archive.Prune(cmd.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d exchanges older than %d days\n", pruned, days)
	return nil
}

// newHistoryApp is newApp plus the requirement that the archive actually
// opened. The history commands are useless without it.
func newHistoryApp() (*app, error) {
	a, err := newApp(registry.Options{})
	if err != nil {
		return nil, err
	}
	if a.archive == nil {
		a.close()
		return nil, fmt.Errorf("history is disabled in config (history.enabled = false)")
	}
	return a, nil
}

func printExchanges(exchanges []history.Exchange) {
	if len(exchanges) == 0 {
		fmt.Println(noticeStyle.Render("no archived exchanges"))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("ID\tSEQ\tTITLE\tPROMPT\tWHEN"))
	for _, ex := range exchanges {
		title := ex.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			ex.ID,
			ex.SequenceID,
			titleStyle.Render(truncate(title, 32)),
			truncate(strings.ReplaceAll(ex.Prompt, "\n", " "), 48),
			dateStyle.Render(relativeDate(ex.CreatedAt)),
		)
	}
	w.Flush()
}
