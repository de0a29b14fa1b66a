/*
 *
 * protobridge - protobuf definition graphs and write-handler caches
 * Copyright (C) 2026 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package consts houses the version information of protobridge.
package consts

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version contains the current semantic version of protobridge.
const Version = "0.1.0"

// FullVersion returns the version followed by the commit and the Go
// runtime that built the binary, when they are known.
func FullVersion() string {
	details := VersionDetails()
	commit, ok := details["commit"].(string)
	if !ok || commit == "" {
		return fmt.Sprintf("%s (%s, %s/%s)", Version, details["go_version"], details["go_os"], details["go_arch"])
	}
	if dirty, _ := details["commit_dirty"].(bool); dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit/%s, %s, %s/%s)", Version, commit,
		details["go_version"], details["go_os"], details["go_arch"])
}

// VersionDetails returns the build details of the running binary.
func VersionDetails() map[string]interface{} {
	details := map[string]interface{}{
		"version":    Version,
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return details
	}
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			commitLen := 10
			if len(s.Value) < commitLen {
				commitLen = len(s.Value)
			}
			details["commit"] = s.Value[:commitLen]
		case "vcs.modified":
			details["commit_dirty"] = s.Value == "true"
		}
	}
	return details
}
