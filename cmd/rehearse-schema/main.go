// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

// Package main is the entry point for the application
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rehearse-dev/rehearse"
)

func main() {
	root := &cobra.Command{
		Use:           "rehearse-schema [version]",
		Short:         "Print the workflow JSON schema",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, args []string) error {
			version := ""
			if len(args) == 1 {
				version = args[0]
			}

			b, err := json.MarshalIndent(rehearse.WorkflowSchema(version), "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, string(b))
			return nil
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
