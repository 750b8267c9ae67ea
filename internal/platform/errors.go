package platform

import (
	"errors"
	"fmt"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

type UnsupportedPlatformError struct {
	ID     string
	Reason string
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("platform %q is not supported: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("platform %q is not supported", e.ID)
}

func (e *UnsupportedPlatformError) Is(target error) bool { return target == ErrUnsupportedPlatform }
