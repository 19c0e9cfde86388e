// SPDX-License-Identifier: AGPL-3.0-or-later

package log

import (
	"runtime"
	"strings"
)

// Caller fetches the calling function name, skipping 'depth'.
func Caller(depth int) string {
	var rpc [1]uintptr

	// Fetch PC of caller (ignoring depth)
	if runtime.Callers(depth, rpc[:]) < 1 {
		return ""
	}

	// Fetch func info for caller
	fn := runtime.FuncForPC(rpc[0])
	if fn == nil {
		return ""
	}

	// Get caller fn name
	name := fn.Name()

	// Drop all but the package name and function name, no mod path
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	const params = `[...]`

	// Drop any generic type parameter markers
	if idx := strings.Index(name, params); idx >= 0 {
		name = name[:idx] + name[idx+len(params):]
	}

	return name
}
