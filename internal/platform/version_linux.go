//go:build linux

package platform

import (
	"strings"

	"golang.org/x/sys/unix"
)

func version() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "Linux"
	}
	release := unix.ByteSliceToString(uts.Release[:])
	// drop distribution suffixes such as "-amd64" or "-generic"
	if i := strings.IndexAny(release, "-+"); i > 0 {
		release = release[:i]
	}
	return "Linux " + release
}
