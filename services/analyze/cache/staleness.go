// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"os"
	"time"
)

// FileStamps maps file paths to the mtimes observed when a graph was
// built. A cached graph is served only while every stamped file still
// exists with the same mtime.
type FileStamps map[string]time.Time

// CollectStamps stats every path and records its mtime. Unreadable
// files are recorded with a zero time so any later appearance marks the
// entry stale.
func CollectStamps(paths []string) FileStamps {
	stamps := make(FileStamps, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			stamps[path] = time.Time{}
			continue
		}
		stamps[path] = info.ModTime()
	}
	return stamps
}

// Stale reports whether any stamped file changed, vanished, or became
// readable since the stamps were collected. Empty stamps never go
// stale; such entries rely on watcher invalidation alone.
func (s FileStamps) Stale() bool {
	for path, stamped := range s {
		info, err := os.Stat(path)
		if err != nil {
			if !stamped.IsZero() {
				return true
			}
			continue
		}
		if stamped.IsZero() || !info.ModTime().Equal(stamped) {
			return true
		}
	}
	return false
}
