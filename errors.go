package logocluster

import (
	"errors"
	"fmt"
)

// Decode failure reasons reported in ImageDecodeError.Reason.
const (
	ReasonMissing     = "missing"
	ReasonUnreadable  = "unreadable"
	ReasonUnsupported = "unsupported"
	ReasonCorrupt     = "corrupt"
	ReasonEmpty       = "empty"
	ReasonTooLarge    = "too_large"
	ReasonHash        = "hash"
)

// ErrEmptyManifestHeader is returned when the manifest has no usable header row.
var ErrEmptyManifestHeader = errors.New("manifest header must contain domain and local_path columns")

// ImageDecodeError reports a logo file that could not be turned into a
// fingerprint. It is recoverable: the record is skipped and counted.
type ImageDecodeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("decode %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// IncompatibleFingerprintError reports two fingerprints that cannot be
// compared. Fingerprints of one run always share kind and length, so this
// signals a programming error.
type IncompatibleFingerprintError struct {
	LeftKind, RightKind HashAlgorithm
	LeftBits, RightBits int
}

func (e *IncompatibleFingerprintError) Error() string {
	return fmt.Sprintf("incompatible fingerprints: %s/%d bits vs %s/%d bits",
		e.LeftKind, e.LeftBits, e.RightKind, e.RightBits)
}
