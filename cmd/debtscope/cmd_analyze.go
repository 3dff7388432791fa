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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/DebtScope/services/analyze"
	"github.com/AleutianAI/DebtScope/services/analyze/config"
)

// runAnalyze builds the call graph for one project and prints its
// statistics. With --function it additionally reports criticality,
// delegation, and direct edges for that function.
func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Cache.Watch = false

	projectRoot, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	svc, err := analyze.NewService(*cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	resp, err := svc.Analyze(ctx, projectRoot, excludeGlobs)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Printf("project:          %s\n", resp.ProjectRoot)
	fmt.Printf("functions:        %d\n", resp.Functions)
	fmt.Printf("call edges:       %d\n", resp.CallEdges)
	fmt.Printf("edges resolved:   %d\n", resp.EdgesResolved)
	fmt.Printf("edges unresolved: %d\n", resp.EdgesUnresolved)
	fmt.Printf("entry points:     %d\n", resp.EntryPoints)
	fmt.Printf("files processed:  %d\n", resp.FilesProcessed)
	fmt.Printf("files failed:     %d\n", resp.FilesFailed)
	fmt.Printf("duration:         %dms\n", resp.DurationMs)
	if resp.Incomplete {
		fmt.Println("build incomplete: some files contributed nothing")
	}
	for _, msg := range resp.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}

	if functionID == "" {
		return nil
	}
	return reportFunction(ctx, svc, projectRoot, functionID)
}

// reportFunction prints the per-function analytics for one identity.
func reportFunction(ctx context.Context, svc *analyze.Service, projectRoot, function string) error {
	crit, err := svc.Criticality(ctx, projectRoot, function)
	if err != nil {
		return err
	}
	del, err := svc.Delegation(ctx, projectRoot, function)
	if err != nil {
		return err
	}
	callers, err := svc.Callers(ctx, projectRoot, function)
	if err != nil {
		return err
	}
	callees, err := svc.Callees(ctx, projectRoot, function)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"criticality": crit,
			"delegation":  del,
			"callers":     callers,
			"callees":     callees,
		})
	}

	fmt.Printf("\nfunction:     %s\n", function)
	fmt.Printf("criticality:  %.2f\n", crit.Score)
	fmt.Printf("fan-in:       %d\n", crit.FanIn)
	fmt.Printf("fan-out:      %d\n", crit.FanOut)
	fmt.Printf("entry point:  %t\n", crit.IsEntryPoint)
	fmt.Printf("test helper:  %t\n", crit.IsTestHelper)
	fmt.Printf("delegator:    %t (own complexity %d, avg callee %.1f)\n",
		del.IsDelegator, del.Complexity, del.AvgCalleeComplexity)

	if len(callers) > 0 {
		fmt.Println("callers:")
		for _, ref := range callers {
			fmt.Printf("  %s\n", ref.ID)
		}
	}
	if len(callees) > 0 {
		fmt.Println("callees:")
		for _, ref := range callees {
			fmt.Printf("  %s\n", ref.ID)
		}
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
