package publish

import (
	"errors"
	"fmt"
)

// DeliveryError wraps a platform failure. Transient errors (rate limits,
// flaky network) are worth retrying; permanent ones are not.
type DeliveryError struct {
	Transient bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("delivery error (%s): %v", kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ConfigurationError marks deliveries that cannot proceed at all: missing
// destination, missing credentials. Never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

// IsRetryable reports whether a failed delivery should count as transient.
func IsRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Transient
	}
	return false
}
