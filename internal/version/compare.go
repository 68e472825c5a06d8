// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
)

const (
	// CompareString treats any difference between the two trimmed version
	// strings as an available update. There is no notion of "older" in this
	// mode; it exists for apps whose versions are hashes or dates.
	CompareString CompareMode = "string"

	// CompareSemver parses both sides as major.minor.patch triples and
	// reports an update only when the local version is strictly older.
	CompareSemver CompareMode = "semver"
)

// ErrInvalidCompareMode is the sentinel error wrapped by InvalidCompareModeError.
var ErrInvalidCompareMode = errors.New("invalid compare mode")

type (
	// CompareMode selects the strategy used to decide whether a remote
	// version counts as newer than the local one.
	CompareMode string

	// InvalidCompareModeError is returned when a CompareMode value is not
	// recognized. It wraps ErrInvalidCompareMode for errors.Is() compatibility.
	InvalidCompareModeError struct {
		Value CompareMode
	}
)

// Error implements the error interface.
func (e *InvalidCompareModeError) Error() string {
	return fmt.Sprintf("invalid compare mode %q (must be %q or %q)",
		e.Value, CompareString, CompareSemver)
}

// Unwrap returns ErrInvalidCompareMode so callers can use errors.Is.
func (e *InvalidCompareModeError) Unwrap() error { return ErrInvalidCompareMode }

// IsValid returns whether the CompareMode is one of the recognized values,
// and a list of validation errors if it is not.
func (m CompareMode) IsValid() (bool, []error) {
	switch m {
	case CompareString, CompareSemver:
		return true, nil
	}
	return false, []error{&InvalidCompareModeError{Value: m}}
}

// String returns the mode's wire value.
func (m CompareMode) String() string { return string(m) }

// NeedsUpdate reports whether remote counts as newer than local under the
// given mode. Both inputs are expected to be pre-trimmed (see TrimVersion).
// In semver mode a parse failure on either side is returned as an error so
// the caller can distinguish "cannot decide" from "up to date".
func NeedsUpdate(mode CompareMode, local, remote string) (bool, error) {
	switch mode {
	case CompareString:
		return local != remote, nil
	case CompareSemver:
		localVer, err := Parse(local)
		if err != nil {
			return false, fmt.Errorf("local version: %w", err)
		}
		remoteVer, err := Parse(remote)
		if err != nil {
			return false, fmt.Errorf("remote version: %w", err)
		}
		return localVer.Compare(remoteVer) < 0, nil
	}
	return false, &InvalidCompareModeError{Value: mode}
}
