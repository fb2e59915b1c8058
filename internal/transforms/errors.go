package transforms

import "fmt"

// ConfigError reports a hoist configuration that cannot be applied to a
// schema. No schema is produced when it is returned.
type ConfigError struct {
	TypeName     string
	NewFieldName string
	Reason       string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("hoist %s.%s: %s", e.TypeName, e.NewFieldName, e.Reason)
}

func (h *HoistField) configError(format string, args ...any) *ConfigError {
	return &ConfigError{TypeName: h.typeName, NewFieldName: h.newFieldName, Reason: fmt.Sprintf(format, args...)}
}
