// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command modelbuilder serves the model builder API and runs offline
// checks against exported model documents.
//
// Usage:
//
//	modelbuilder serve
//	modelbuilder serve --config ./modelbuilder.yaml
//	modelbuilder validate model.json
//	modelbuilder daily model.json
//
// Example requests:
//
//	# Create a session
//	curl -X POST http://localhost:8095/v1/modelbuilder/sessions -d '{"name": "Shop"}'
//
//	# Import a document into it
//	curl -X POST http://localhost:8095/v1/modelbuilder/sessions/$ID/import --data-binary @model.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/config"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "modelbuilder",
		Short:         "Serve and check environmental impact models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the model builder API server",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in serve.go
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}

	importCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Import a model document and report its payload size",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport, // Defined in offline.go
	}

	validateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a model document can be computed",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate, // Defined in offline.go
	}

	dailyCmd = &cobra.Command{
		Use:   "daily [file]",
		Short: "Print daily emission series for every usage pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runDaily, // Defined in offline.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to the config file")
	dailyCmd.Flags().Bool("json", false, "print the series as JSON")
	rootCmd.AddCommand(serveCmd, initCmd, importCmd, validateCmd, dailyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	if err := config.WriteDefault(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config ready at %s\n", configPath)
	return nil
}
