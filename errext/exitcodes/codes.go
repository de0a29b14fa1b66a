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

// Package exitcodes contains the process exit codes used by protobridge.
package exitcodes

// ExitCode is the code the CLI exits with when an error carrying it reaches
// the top of the command tree.
type ExitCode uint8

// list of exit codes used by protobridge
const (
	GenericError       ExitCode = 1
	InvalidConfig      ExitCode = 104
	InvalidSchema      ExitCode = 110
	InvalidInput       ExitCode = 111
	UnsupportedFeature ExitCode = 112
	LoaderFailure      ExitCode = 113
	GoPanic            ExitCode = 114
)
