package sched

import (
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/irq"
	"github.com/nyxkernel/nyxkernel/kernel/kfmt/early"
	"github.com/nyxkernel/nyxkernel/kernel/task"
)

// HandleUserFault is wired to irq.UserFaultFn. A CPU exception whose
// faulting EIP lies in the user range is fatal only to the offending task:
// log it, dump its context, and cancel it with exit value -1, per
// SPEC_FULL.md §4.3/§7. The rest of the system continues.
func (s *Scheduler) HandleUserFault(intNo, errCode, eip uint32) {
	guard := cpu.BeginAtomic()
	t := s.running
	early.Printf("\n[sched] task %d (%s) faulted: %s (int=%d err=0x%x eip=0x%x)\n",
		t.ID, t.Name, irq.ExceptionMessage(intNo), intNo, errCode, eip)
	task.Dump(t)
	task.Cancel(t, -1)
	guard.Release()
}
