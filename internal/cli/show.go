// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/config"
	"github.com/jeranaias/strand/internal/registry"
	"github.com/jeranaias/strand/internal/sequence"
)

var showCmd = &cobra.Command{
	Use:   "show <sequence-id>",
	Short: "Print a sequence transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence ID %q", args[0])
	}

	a, err := newApp(registry.Options{})
	if err != nil {
		return err
	}
	defer a.close()

	detail, err := a.client.GetSequence(cmd.Context(), id)
	if err != nil {
		return err
	}

	seq := sequenceFromDetail(detail, a.cfg.DefaultModel)
	printTranscript(os.Stdout, seq, a.cfg)
	return nil
}

// printTranscript renders a sequence header plus every message, one
// role-prefixed block per message. Temporary messages render as notices.
func printTranscript(w io.Writer, seq sequence.Sequence, cfg *config.Config) {
	title := seq.HumanDesc
	if title == "" {
		title = "(untitled)"
	}
	header := fmt.Sprintf("#%d  %s", seq.ServerID, title)
	if seq.Pinned {
		header += "  " + pinStyle.Render("[pinned]")
	}
	fmt.Fprintln(w, headerStyle.Render(header))
	if seq.ModelID != "" {
		fmt.Fprintln(w, idStyle.Render("model: "+seq.ModelID))
	}
	if len(seq.Ancestors) > 0 {
		fmt.Fprintln(w, idStyle.Render(fmt.Sprintf("ancestors: %v", seq.Ancestors)))
	}
	fmt.Fprintln(w)

	for _, msg := range seq.Messages {
		role := sequence.RoleOf(msg)
		content := sequence.ContentOf(msg)
		switch m := msg.(type) {
		case sequence.Temporary:
			style := noticeStyle
			if m.Origin == sequence.OriginServerError {
				style = errorStyle
			}
			fmt.Fprintln(w, style.Render(role+": "+content))
		default:
			label := assistantStyle
			if role == sequence.RoleUser {
				label = userStyle
			}
			fmt.Fprintln(w, label.Render(role+">"))
			fmt.Fprintln(w, content)
		}
		fmt.Fprintln(w)
	}
}
