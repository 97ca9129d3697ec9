package cheribuild

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// hostTriple detects the triple of the build machine. On FreeBSD the major
// release number is part of the triple (it selects the standard library ABI),
// on Linux it is not.
func hostTriple() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname failed: %w", err)
	}
	machine := unixString(uts.Machine[:])
	if machine == "amd64" {
		machine = "x86_64"
	}
	if runtime.GOOS == "freebsd" {
		release := unixString(uts.Release[:])
		if idx := strings.Index(release, "."); idx > 0 {
			release = release[:idx]
		}
		return machine + "-unknown-freebsd" + release, nil
	}
	return machine + "-unknown-linux-gnu", nil
}

func unixString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}
	return string(b)
}

func defaultMakeJobs() int {
	return runtime.NumCPU()
}
