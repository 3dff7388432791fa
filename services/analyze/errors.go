// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyze

import "errors"

// Sentinel errors for the analyze service.
var (
	// ErrGraphNotBuilt indicates no graph exists for the project, in
	// cache or in the snapshot store.
	ErrGraphNotBuilt = errors.New("graph not built for project")

	// ErrRelativePath indicates the project root was a relative path.
	ErrRelativePath = errors.New("project root must be an absolute path")

	// ErrPathTraversal indicates the path contains .. traversal sequences.
	ErrPathTraversal = errors.New("path contains traversal sequences")

	// ErrProjectTooLarge indicates the project exceeds size limits.
	ErrProjectTooLarge = errors.New("project exceeds size limits")

	// ErrBuildInProgress indicates another build is already running for
	// this project.
	ErrBuildInProgress = errors.New("build in progress")

	// ErrBuildTimeout indicates the build exceeded the allowed duration.
	ErrBuildTimeout = errors.New("build timed out")
)
