// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command debtscope analyzes call graphs for technical-debt signals.
//
// Usage:
//
//	debtscope analyze /path/to/project
//	debtscope analyze /path/to/project --function "src/server.go:Server::handle:42"
//	debtscope serve --config debtscope.yaml
//	debtscope version
//
// Example requests against a running server:
//
//	# Health check
//	curl http://localhost:8085/v1/analyze/health
//
//	# Build a graph
//	curl -X POST http://localhost:8085/v1/analyze/graph \
//	  -H "Content-Type: application/json" \
//	  -d '{"project_root": "/path/to/project"}'
//
//	# Score a function
//	curl "http://localhost:8085/v1/analyze/criticality?project_root=/path/to/project&function=main.go:run:7"
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
