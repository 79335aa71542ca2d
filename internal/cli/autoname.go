// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/registry"
)

var autonameCmd = &cobra.Command{
	Use:   "autoname <sequence-id>",
	Short: "Ask the server to generate a title for a sequence",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutoname,
}

func init() {
	rootCmd.AddCommand(autonameCmd)
}

func runAutoname(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence ID %q", args[0])
	}

	a, err := newApp(registry.Options{})
	if err != nil {
		return err
	}
	defer a.close()

	name, err := a.client.Autoname(cmd.Context(), id, a.cfg.Inference.AutonamingModel)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(name))
	return nil
}
