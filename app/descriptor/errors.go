package descriptor

import "fmt"

// ConfigError reports a malformed or missing descriptor key. It is fatal for
// the descriptor it names only.
type ConfigError struct {
	Descriptor string
	Key        string
	Reason     string
	Err        error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("descriptor %s", e.Descriptor)
	if e.Key != "" {
		msg += fmt.Sprintf(": %s", e.Key)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
