package draft

import (
	"github.com/fleetmarket/vinfill/internal/form"
	"github.com/fleetmarket/vinfill/internal/wizard"
)

// withController runs fn under the draft lock.
func (d *Draft) withController(fn func(c *wizard.Controller, t *form.Table)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.ctrl, d.table)
}
