package styles

import "fmt"

// NotFoundError is an unknown style name
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("style not found: %s", e.Name)
}

// EffectFailedError is a frame the effect could not process
type EffectFailedError struct {
	Style  string
	Reason string
}

func (e *EffectFailedError) Error() string {
	return fmt.Sprintf("style %s failed: %s", e.Style, e.Reason)
}
