package clip

import (
	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
)

// Copier copies the server URL to the system clipboard. Failures are
// reported to the caller and logged as warnings, never treated as fatal.
type Copier struct {
	enabled bool
}

// New builds a Copier; disabled copiers are silent no-ops.
func New(enabled bool) *Copier {
	return &Copier{enabled: enabled}
}

// Enabled reports whether copying is active.
func (c *Copier) Enabled() bool {
	return c.enabled
}

// CopyURL places url on the clipboard when enabled.
func (c *Copier) CopyURL(url string) error {
	if !c.enabled {
		return nil
	}
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available on this system")
	}
	if err := clipboard.WriteAll(url); err != nil {
		return errors.Wrap(err, "copy to clipboard")
	}
	return nil
}
