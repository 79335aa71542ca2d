// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/registry"
)

var pinOff bool

var pinCmd = &cobra.Command{
	Use:   "pin <sequence-id>",
	Short: "Pin a sequence so it always shows in listings",
	Args:  cobra.ExactArgs(1),
	RunE:  runPin,
}

func init() {
	rootCmd.AddCommand(pinCmd)
	pinCmd.Flags().BoolVar(&pinOff, "off", false, "Unpin instead")
}

func runPin(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence ID %q", args[0])
	}

	a, err := newApp(registry.Options{})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.client.SetUserPinned(cmd.Context(), id, !pinOff); err != nil {
		return err
	}

	verb := "pinned"
	if pinOff {
		verb = "unpinned"
	}
	fmt.Printf("%s sequence %d\n", verb, id)
	return nil
}
