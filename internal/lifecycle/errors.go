package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration marks equipment that does not expose what its profile requires
var ErrConfiguration = errors.New("lifecycle: equipment profile mismatch")

// ConfigurationError names the service or characteristics missing after discovery
type ConfigurationError struct {
	Stage   State
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v during %s: missing %s", ErrConfiguration, e.Stage, strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
