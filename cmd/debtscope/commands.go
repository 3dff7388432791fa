// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "0.1.0-dev"

// --- Global Command Variables ---
var (
	configPath   string
	functionID   string
	excludeGlobs []string
	jsonOutput   bool

	rootCmd = &cobra.Command{
		Use:   "debtscope",
		Short: "Call-graph analysis for technical-debt signals",
		Long: `DebtScope builds cross-file call graphs from source code and
scores functions by criticality, fan-in/fan-out, and delegation
patterns.`,
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [project root]",
		Short: "Build the call graph for a project and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze, // Defined in cmd_analyze.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis HTTP server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the DebtScope version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("debtscope", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	analyzeCmd.Flags().StringVar(&functionID, "function", "", "Report on one function (file:name:line) after the build")
	analyzeCmd.Flags().StringSliceVar(&excludeGlobs, "exclude", nil, "Glob patterns to exclude, relative to the project root")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
