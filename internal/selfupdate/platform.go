// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"fmt"
	"runtime"
)

const (
	// PlatformLinuxAMD64 is 64-bit x86 Linux.
	PlatformLinuxAMD64 Platform = "linux-x86_64"
	// PlatformLinuxARM64 is 64-bit ARM Linux.
	PlatformLinuxARM64 Platform = "linux-aarch64"
	// PlatformMacAMD64 is 64-bit x86 macOS.
	PlatformMacAMD64 Platform = "macos-x86_64"
	// PlatformMacARM64 is Apple Silicon macOS.
	PlatformMacARM64 Platform = "macos-aarch64"
	// PlatformUnknown is any OS/architecture pair without published release
	// assets. Self-update cannot proceed on it.
	PlatformUnknown Platform = "unknown"
)

// ErrUnsupportedPlatform is the sentinel error wrapped by UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

type (
	// Platform identifies an OS/architecture pair with published release
	// assets. It is derived once per process and never changes.
	Platform string

	// UnsupportedPlatformError names the OS/architecture pair that has no
	// release assets. It wraps ErrUnsupportedPlatform for errors.Is().
	UnsupportedPlatformError struct {
		OS   string
		Arch string
	}
)

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no release assets are published for %s/%s", e.OS, e.Arch)
}

// Unwrap returns ErrUnsupportedPlatform so callers can use errors.Is.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// IsValid returns whether the Platform is a supported release target, and a
// list of validation errors if it is not.
func (p Platform) IsValid() (bool, []error) {
	switch p {
	case PlatformLinuxAMD64, PlatformLinuxARM64, PlatformMacAMD64, PlatformMacARM64:
		return true, nil
	}
	return false, []error{&UnsupportedPlatformError{OS: runtime.GOOS, Arch: runtime.GOARCH}}
}

// String returns the platform's release-asset spelling.
func (p Platform) String() string { return string(p) }

// AssetName returns the release archive filename for this platform,
// e.g. "uppies-linux-x86_64.tar.gz".
func (p Platform) AssetName() string {
	return fmt.Sprintf("%s-%s.tar.gz", binaryName, p)
}

// CurrentPlatform maps the running OS and architecture to a Platform.
// Release archives use x86_64/aarch64 naming, so the Go architecture names
// are translated.
func CurrentPlatform() Platform {
	return detectPlatform(runtime.GOOS, runtime.GOARCH)
}

func detectPlatform(goos, goarch string) Platform {
	switch {
	case goos == "linux" && goarch == "amd64":
		return PlatformLinuxAMD64
	case goos == "linux" && goarch == "arm64":
		return PlatformLinuxARM64
	case goos == "darwin" && goarch == "amd64":
		return PlatformMacAMD64
	case goos == "darwin" && goarch == "arm64":
		return PlatformMacARM64
	default:
		return PlatformUnknown
	}
}
