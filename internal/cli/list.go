// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/api"
	"github.com/jeranaias/strand/internal/registry"
	"github.com/jeranaias/strand/internal/wire"
)

var (
	listLookback int
	listLimit    int
	listPinned   bool
	listLeaves   bool
	listAll      bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent sequences",
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLookback, "lookback", 0, "Only sequences active in the last N days")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of sequences")
	listCmd.Flags().BoolVar(&listPinned, "pinned", false, "Include pinned sequences regardless of age")
	listCmd.Flags().BoolVar(&listLeaves, "leaves", false, "Include leaf sequences only")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Include everything the server will return")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(registry.Options{})
	if err != nil {
		return err
	}
	defer a.close()

	details, err := a.client.ListRecent(cmd.Context(), api.RecentQuery{
		Lookback:             listLookback,
		Limit:                listLimit,
		IncludeUserPinned:    listPinned,
		IncludeLeafSequences: listLeaves,
		IncludeAll:           listAll,
	})
	if err != nil {
		return err
	}

	if len(details) == 0 {
		fmt.Println(noticeStyle.Render("no sequences found"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("ID\tTITLE\tMSGS\tMODEL\tACTIVE"))
	for _, d := range details {
		title := d.HumanDesc
		if title == "" {
			title = "(untitled)"
		}
		title = truncate(title, a.cfg.UI.TitleWidth)
		if d.UserPinned {
			title = pinStyle.Render("*") + " " + title
		}

		active := "-"
		if t, err := wire.ParseTime(d.GeneratedAt); err == nil {
			active = relativeDate(t)
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			idStyle.Render(fmt.Sprintf("%d", d.SequenceID)),
			titleStyle.Render(title),
			len(d.Messages),
			d.InferenceModelID,
			dateStyle.Render(active),
		)
	}
	return w.Flush()
}
