// Package device declares the driver-facing contract device drivers
// implement and the thin seam that connects a driver's interrupt handler to
// the core's irq dispatcher. Grounded on the teacher's
// src/gopheros/device/driver.go; the bus+name matching registry the
// teacher's ACPI layer builds on top of this is explicitly out of scope
// (SPEC_FULL.md §6: "this registry is not part of the core").
package device

import (
	"io"

	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/irq"
)

// Driver is implemented by every device driver the core can load.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major, minor, patch uint16)

	// DriverInit initializes the device driver. Diagnostic output, if any,
	// goes to w.
	DriverInit(w io.Writer) *kernel.Error
}

// ProbeFn scans for the presence of a particular piece of hardware and
// returns a driver for it, or nil if the hardware is not present.
type ProbeFn func() Driver

// IRQHandler is implemented by a driver that wants to receive IRQ firings
// once initialized.
type IRQHandler interface {
	Driver

	// HandleIRQ processes one firing of irqNum.
	HandleIRQ(irqNum uint32)
}

// Subscribe initializes d, and if it also implements IRQHandler, registers
// it with the core's interrupt dispatcher for irqNum. This is the core's
// entire involvement in device wiring; matching a driver to a physical
// device address is the external registry's job.
func Subscribe(irqNum uint32, d Driver, w io.Writer) *kernel.Error {
	if err := d.DriverInit(w); err != nil {
		return err
	}

	if h, ok := d.(IRQHandler); ok {
		irq.Register(irqNum, func(n uint32) { h.HandleIRQ(n) })
	}

	return nil
}
