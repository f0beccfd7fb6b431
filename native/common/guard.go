package common

import (
	"errors"
	"fmt"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is currently halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns an error wrapping ErrModulePaused when the named module is
// halted. A nil view means pausing is not wired and the guard passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%s: %w", module, ErrModulePaused)
	}
	return nil
}
