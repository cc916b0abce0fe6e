package device

import (
	"io"
	"testing"

	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/irq"
)

type fakeDriver struct {
	initCalled   bool
	irqsHandled  []uint32
	initErr      *kernel.Error
}

func (d *fakeDriver) DriverName() string                        { return "fake" }
func (d *fakeDriver) DriverVersion() (uint16, uint16, uint16)    { return 1, 0, 0 }
func (d *fakeDriver) DriverInit(w io.Writer) *kernel.Error       { d.initCalled = true; return d.initErr }
func (d *fakeDriver) HandleIRQ(n uint32)                         { d.irqsHandled = append(d.irqsHandled, n) }

func TestSubscribeInitializesAndRegistersIRQHandler(t *testing.T) {
	d := &fakeDriver{}

	if err := Subscribe(3, d, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.initCalled {
		t.Fatal("expected DriverInit to be called")
	}

	irq.Dispatch(0, &irq.Frame{IntNo: 35})

	if len(d.irqsHandled) != 1 || d.irqsHandled[0] != 3 {
		t.Fatalf("expected the driver's HandleIRQ to fire for IRQ 3; got %v", d.irqsHandled)
	}
}

func TestSubscribePropagatesInitError(t *testing.T) {
	wantErr := &kernel.Error{Module: "fake", Message: "boom"}
	d := &fakeDriver{initErr: wantErr}

	if err := Subscribe(3, d, io.Discard); err != wantErr {
		t.Fatalf("expected init error to propagate; got %v", err)
	}
}
