package machine

import "sync/atomic"

// NoInterruptPending is the sentinel opcode meaning "nothing queued": 0x20
// is one of the 8080's undocumented encodings (opcodeTable runs it as NOP)
// and is never an RST, so it's free to repurpose here.
const NoInterruptPending byte = 0x20

// Scheduler drives Step in a cycle-budgeted loop, honoring breakpoints and
// a debug shell. The synchronous driver (Run/Interrupt called directly on
// the host goroutine) and the background driver (run on its own goroutine,
// fed over a channel) both wrap one Scheduler.
type Scheduler struct {
	CPU *CPU
	Mem Memory
	IO  IO

	Breakpoints map[uint16]bool
	DebugMode   bool

	target uint64 // cumulative CycleCount target; advanced by each Run call
}

// NewScheduler builds a scheduler over an already-constructed CPU and its
// borrowed memory/IO.
func NewScheduler(cpu *CPU, mem Memory, io IO) *Scheduler {
	return &Scheduler{
		CPU:         cpu,
		Mem:         mem,
		IO:          io,
		Breakpoints: make(map[uint16]bool),
	}
}

// Run executes instructions until the cumulative cycle counter reaches the
// target advanced by budgetCycles. If a step lands PC on a breakpoint, Run
// returns early with hitBreakpoint true, leaving the remaining budget
// owed to a subsequent call once the debug shell releases control.
func (s *Scheduler) Run(budgetCycles uint64) (hitBreakpoint bool) {
	s.target += budgetCycles

	for s.CPU.CycleCount < s.target {
		if s.CPU.Halted {
			// A halted CPU burns cycles doing nothing until Interrupt wakes it;
			// advancing the counter directly avoids a busy loop over Step.
			s.CPU.CycleCount = s.target
			return false
		}

		Step(s.CPU, s.Mem, s.IO)

		if s.Breakpoints[s.CPU.PC] {
			return true
		}
	}

	return false
}

// Interrupt injects opcode regardless of the running budget.
func (s *Scheduler) Interrupt(opcode byte) {
	Interrupt(s.CPU, s.Mem, s.IO, opcode)
}

//////////////////////////////////////////////////////////////////////////
// Background driver.

// nonBlockingChan is a bounded channel with an atomically-tracked element
// count, so a single producer can attempt a send without ever blocking:
// once the channel is at capacity, send reports failure instead of
// waiting for a receiver.
type nonBlockingChan[T any] struct {
	ch       chan T
	count    atomic.Int32
	capacity int32
}

func newNonBlockingChan[T any](capacity int32) *nonBlockingChan[T] {
	return &nonBlockingChan[T]{ch: make(chan T, capacity), capacity: capacity}
}

func (c *nonBlockingChan[T]) send(v T) bool {
	n := c.count.Add(1)
	if n > c.capacity {
		c.count.Add(-1)
		return false
	}
	c.ch <- v
	return true
}

func (c *nonBlockingChan[T]) receive() (T, bool) {
	v, ok := <-c.ch
	if ok {
		c.count.Add(-1)
	}
	return v, ok
}

func (c *nonBlockingChan[T]) close() {
	c.count.Store(c.capacity + 1)
	close(c.ch)
}

// messageKind distinguishes the two message shapes the background driver
// accepts from the host.
type messageKind int

const (
	msgDebugToggle messageKind = iota
	msgInterruptRequest
)

type message struct {
	kind   messageKind
	opcode byte
}

// BackgroundDriver runs a Scheduler on its own goroutine, polling a
// non-blocking channel for Debug-toggle and InterruptRequest messages
// between instructions. Exactly one interrupt is kept pending: a new
// InterruptRequest overwrites a still-unconsumed one, matching the
// documented arcade behavior that only the most recent RST matters
// before the CPU next accepts an interrupt.
type BackgroundDriver struct {
	sched *Scheduler
	in    *nonBlockingChan[message]

	pending byte // NoInterruptPending when nothing is queued
	done    chan struct{}
}

// NewBackgroundDriver starts the scheduler goroutine and returns a handle
// for sending messages to it. stepCycles bounds how many cycles elapse
// between channel polls.
func NewBackgroundDriver(sched *Scheduler, stepCycles uint64) *BackgroundDriver {
	d := &BackgroundDriver{
		sched:   sched,
		in:      newNonBlockingChan[message](8),
		pending: NoInterruptPending,
		done:    make(chan struct{}),
	}

	go d.loop(stepCycles)

	return d
}

func (d *BackgroundDriver) loop(stepCycles uint64) {
	defer close(d.done)

	for {
		if !d.drainMessages() {
			return
		}

		if d.pending != NoInterruptPending {
			d.sched.Interrupt(d.pending)
			d.pending = NoInterruptPending
		}

		if d.sched.DebugMode {
			msg, ok := d.in.receive()
			if !ok {
				return
			}
			d.apply(msg)
			continue
		}

		if d.sched.Run(stepCycles) {
			// Breakpoint hit: park in debug mode until the host toggles it off.
			d.sched.DebugMode = true
		}
	}
}

// drainMessages applies every message currently queued without blocking.
// It reports false once the channel has been closed, ending the loop.
func (d *BackgroundDriver) drainMessages() bool {
	for {
		select {
		case msg, ok := <-d.in.ch:
			if !ok {
				return false
			}
			d.in.count.Add(-1)
			d.apply(msg)
		default:
			return true
		}
	}
}

func (d *BackgroundDriver) apply(msg message) {
	switch msg.kind {
	case msgDebugToggle:
		d.sched.DebugMode = !d.sched.DebugMode
	case msgInterruptRequest:
		d.pending = msg.opcode // overwrites any still-unconsumed request
	}
}

// Debug toggles the background driver's debug shell mode. It never blocks
// the caller.
func (d *BackgroundDriver) Debug() bool {
	return d.in.send(message{kind: msgDebugToggle})
}

// InterruptRequest queues opcode to be injected at the next poll. It never
// blocks the caller; if the channel is momentarily full the request is
// dropped, but since only the newest pending interrupt matters this is
// harmless under normal load (8 slots comfortably absorb bursts).
func (d *BackgroundDriver) InterruptRequest(opcode byte) bool {
	return d.in.send(message{kind: msgInterruptRequest, opcode: opcode})
}

// Close ends the background goroutine and waits for it to exit.
func (d *BackgroundDriver) Close() {
	d.in.close()
	<-d.done
}
