// Package core provides the cycle-accurate fetch-stage model with its
// instruction memory attached. It wraps the stage to provide a high-level
// interface: drive the per-cycle handshake, script redirects, and collect
// the produced instruction stream and statistics.
package core

import (
	"github.com/sarchlab/rvfetch/timing/fetch"
	"github.com/sarchlab/rvfetch/timing/imem"
)

// Fetched is one delivered (PC, instruction) pair.
type Fetched struct {
	PC    uint32
	Instr uint32
}

// Stats holds performance statistics for the fetch core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Fetched is the number of instructions delivered to decode.
	Fetched uint64
	// Bubbles is the number of no-operation bubbles injected while branch
	// outcomes were pending.
	Bubbles uint64
	// WaitCycles is the number of cycles nothing was delivered.
	WaitCycles uint64
	// Redirects is the number of taken redirects (branches, exceptions,
	// debug overrides).
	Redirects uint64
}

// IPC returns delivered instructions per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Fetched) / float64(s.Cycles)
}

// branchPhase tracks a scripted branch through decode and execute.
type branchPhase uint8

const (
	branchIdle branchPhase = iota
	branchInDecode
	branchInExecute
)

// Core bundles the fetch stage and its instruction memory and drives the
// signals the surrounding pipeline would supply. The core asserts the IF
// stall whenever the ID stall is asserted, the usual backward stall
// propagation of an in-order pipeline.
type Core struct {
	// Stage is the underlying fetch stage.
	Stage *fetch.Stage
	// Mem is the instruction memory behind the fetch port.
	Mem *imem.Memory

	bootAddr    uint32
	fetchEnable bool
	stalled     bool

	pcin     fetch.PCInputs
	redirSel fetch.PCSelector
	redirArm bool

	brPhase  branchPhase
	brKind   fetch.BranchKind
	brTaken  bool
	brTarget uint32

	memWires fetch.MemOut
	trace    []Fetched
	stats    Stats
}

// NewCore creates a fetch core over the given instruction memory.
func NewCore(mem *imem.Memory, opts ...fetch.StageOption) *Core {
	return &Core{
		Stage:       fetch.NewStage(opts...),
		Mem:         mem,
		fetchEnable: true,
	}
}

// SetBootAddr sets the boot base address used at reset entry and for
// exception vectors.
func (c *Core) SetBootAddr(addr uint32) {
	c.bootAddr = addr
}

// SetFetchEnable controls whether the stage is asked for instructions.
func (c *Core) SetFetchEnable(on bool) {
	c.fetchEnable = on
}

// SetStall asserts or clears the decode-side stall. The IF stall follows.
func (c *Core) SetStall(on bool) {
	c.stalled = on
}

// Branch scripts a branch through the pipeline: on the next Tick decode
// reports it unresolved, and on the Tick after that execute resolves it
// with the given decision and target.
func (c *Core) Branch(kind fetch.BranchKind, taken bool, target uint32) {
	c.brPhase = branchInDecode
	c.brKind = kind
	c.brTaken = taken
	c.brTarget = target
}

// Redirect requests a one-shot PC redirect through the given selector on
// the next Tick (jump, exception return, hardware loop, debug override).
func (c *Core) Redirect(sel fetch.PCSelector, target uint32) {
	switch sel {
	case fetch.SelJump:
		c.pcin.JumpTarget = target
	case fetch.SelExceptionReturn:
		c.pcin.ReturnAddr = target
	case fetch.SelHWLoop:
		c.pcin.HWLoopTarget = target
	case fetch.SelDebug:
		c.pcin.DebugPC = target
	}
	c.redirSel = sel
	c.redirArm = true
}

// RaiseException requests a one-shot redirect to the exception vector for
// the given cause on the next Tick.
func (c *Core) RaiseException(cause fetch.ExcCause) {
	c.pcin.Cause = cause
	c.redirSel = fetch.SelException
	c.redirArm = true
}

// Tick advances the core by one cycle.
func (c *Core) Tick() {
	c.stats.Cycles++

	mo := c.Mem.Tick(c.memWires.Req, c.memWires.Addr)

	in := fetch.CycleIn{
		Req:     c.fetchEnable,
		StallIF: c.stalled,
		StallID: c.stalled,
		PCSel:   fetch.SelBoot,
		PC:      c.pcin,
		Mem:     mo,
	}
	in.PC.BootAddr = c.bootAddr

	if c.redirArm {
		in.PCSet = true
		in.PCSel = c.redirSel
		c.redirArm = false
		c.stats.Redirects++
	}

	switch c.brPhase {
	case branchInDecode:
		in.BranchInDecode = c.brKind
		c.brPhase = branchInExecute
	case branchInExecute:
		in.ExBranchKind = c.brKind
		in.ExBranchTaken = c.brTaken
		in.PCSel = fetch.SelJump
		in.PC.JumpTarget = c.brTarget
		c.brPhase = branchIdle
		if c.brTaken || c.brKind == fetch.BranchUnconditional {
			c.stats.Redirects++
		}
	}

	out := c.Stage.Tick(in)
	c.memWires = out.Mem

	switch {
	case out.FetchValid && out.Bubble:
		c.stats.Bubbles++
	case out.FetchValid:
		c.trace = append(c.trace, Fetched{PC: out.PC, Instr: out.Instr})
		c.stats.Fetched++
	default:
		c.stats.WaitCycles++
	}
}

// RunCycles advances the core for the specified number of cycles.
func (c *Core) RunCycles(cycles uint64) {
	for i := uint64(0); i < cycles; i++ {
		c.Tick()
	}
}

// Trace returns the delivered (PC, instruction) stream, bubbles excluded.
func (c *Core) Trace() []Fetched {
	return c.trace
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Reset clears all core state. Memory contents are preserved.
func (c *Core) Reset() {
	c.Stage.Reset()
	c.Mem.Reset()
	c.memWires = fetch.MemOut{}
	c.trace = nil
	c.stats = Stats{}
	c.pcin = fetch.PCInputs{}
	c.redirArm = false
	c.brPhase = branchIdle
	c.stalled = false
	c.fetchEnable = true
}
