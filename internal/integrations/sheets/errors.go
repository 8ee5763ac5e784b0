package sheets

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps transport failures talking to the gateway.
	ErrUnavailable = errors.New("sheets: gateway unavailable")
	// ErrNotFound is returned when the gateway answers 404.
	ErrNotFound = errors.New("sheets: record not found")
)

// UpstreamError carries an error reported by the gateway, either as a
// non-2xx status or as an error field in a 2xx body.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway returned status %d", e.Status)
}

// Is lets errors.Is match ErrNotFound for 404 responses.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}
