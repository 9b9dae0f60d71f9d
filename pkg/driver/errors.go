package driver

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
)

var (
	// ErrUnsupported matches every *UnsupportedOperationError.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrNotFound is returned by discovery when no reachable instrument
	// offers the requested category.
	ErrNotFound = errors.New("no matching instrument found")

	// ErrNoCaptureYet is returned by channel statistics before the first
	// capture.
	ErrNoCaptureYet = errors.New("no capture yet")
)

// UnsupportedOperationError reports a capability operation the matched
// driver does not implement.
type UnsupportedOperationError struct {
	Capability string
	Operation  string
	Model      string
}

func (e *UnsupportedOperationError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s does not support %s", e.Model, e.Capability)
	}
	return fmt.Sprintf("%s does not support %s.%s", e.Model, e.Capability, e.Operation)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupported
}

// Unsupported builds an UnsupportedOperationError.
func Unsupported(model, capability, operation string) error {
	return &UnsupportedOperationError{Capability: capability, Operation: operation, Model: model}
}

// UnidentifiedDeviceError reports an identity no registered driver
// matched. It carries the parsed identity for diagnostics.
type UnidentifiedDeviceError struct {
	Locator  string
	Identity idn.Identity
}

func (e *UnidentifiedDeviceError) Error() string {
	return fmt.Sprintf("no driver for %s (%q)", e.Locator, e.Identity.Raw)
}

// ChannelNotFoundError reports a channel index outside 1..Max.
type ChannelNotFoundError struct {
	Index int
	Max   int
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel %d not found (instrument has channels 1..%d)", e.Index, e.Max)
}
