//go:build !linux && !windows

package platform

import (
	"runtime"
	"strings"
)

func version() string {
	if runtime.GOOS == "" {
		return "unknown"
	}
	return strings.ToUpper(runtime.GOOS[:1]) + runtime.GOOS[1:]
}
