// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/registry"
)

var describeCmd = &cobra.Command{
	Use:   "describe <sequence-id> <title>...",
	Short: "Set a sequence's human description",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence ID %q", args[0])
	}
	title := strings.Join(args[1:], " ")

	a, err := newApp(registry.Options{})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.client.SetHumanDesc(cmd.Context(), id, title); err != nil {
		return err
	}

	fmt.Printf("sequence %d: %s\n", id, titleStyle.Render(title))
	return nil
}
