package fetch

// MemIn is the per-cycle snapshot of the wires the instruction memory
// drives toward the stage.
type MemIn struct {
	// Grant is the single-cycle pulse acknowledging the current request.
	Grant bool
	// Valid is the single-cycle pulse marking the response data as live.
	Valid bool
	// Data is the fetched word, meaningful while Valid is asserted.
	Data uint32
	// Addr echoes the address the response answers. Response latency is
	// variable, so the echo is the only reliable way to attribute data.
	Addr uint32
}

// MemOut is the per-cycle snapshot of the wires the stage drives toward
// the instruction memory.
type MemOut struct {
	// Req asserts a fetch request. Held until the grant pulse.
	Req bool
	// Addr is the word-aligned address of the request.
	Addr uint32
}

// FetchPort bridges the stage to the raw request/grant/valid memory wires,
// exposing a one-outstanding-request abstraction: issue a fetch, learn when
// it was accepted, and read the returned word together with the address it
// answers.
//
// A new Issue while an earlier request is still in flight overwrites the
// port's interest: the protocol still completes the earlier request (this
// stage never drops in-flight fetches), but its response is latched without
// being signaled as valid data.
type FetchPort struct {
	reqOut  bool   // request wire currently asserted
	reqAddr uint32 // address on the request wire

	interest uint32 // address whose response the stage cares about
	waiting  bool   // granted, response not yet seen

	accepted bool // pulse: request granted this cycle
	took     bool // pulse: interesting response arrived this cycle
	have     bool // level: interesting response latched since last Issue

	data     uint32 // last latched response word
	dataAddr uint32 // address the latched word answers

	// allowDrop is the structural cancel-in-flight hook. It is hard-wired
	// off for this stage; in-flight requests are never discarded.
	allowDrop bool
}

// Observe samples the memory-side wires for the current cycle. Must be
// called exactly once per cycle before any accessor is read.
func (p *FetchPort) Observe(in MemIn) {
	p.accepted = false
	p.took = false

	if in.Valid {
		p.data = in.Data
		p.dataAddr = in.Addr
		p.waiting = false
		if in.Addr&^0x3 == p.interest {
			p.took = true
			p.have = true
		}
	}

	if p.reqOut && in.Grant {
		p.reqOut = false
		p.accepted = true
		p.waiting = true
	}
}

// Issue asserts a fetch request for addr (low 2 bits ignored) and moves the
// port's interest to it.
func (p *FetchPort) Issue(addr uint32) {
	p.reqOut = true
	p.reqAddr = addr &^ 0x3
	p.interest = p.reqAddr
	p.have = false
	p.took = false
}

// Wires returns the stage-to-memory wire values for the current cycle.
func (p *FetchPort) Wires() MemOut {
	return MemOut{Req: p.reqOut, Addr: p.reqAddr}
}

// Accepted reports whether the current request was granted this cycle.
func (p *FetchPort) Accepted() bool { return p.accepted }

// DataValid reports whether the response for the address of interest
// arrived this cycle.
func (p *FetchPort) DataValid() bool { return p.took }

// HasData reports whether the response for the address of interest has
// arrived since it was issued.
func (p *FetchPort) HasData() bool { return p.have }

// Data returns the most recently latched response word.
func (p *FetchPort) Data() uint32 { return p.data }

// DataAddr returns the address the latched response word answers.
func (p *FetchPort) DataAddr() uint32 { return p.dataAddr }

// Busy reports whether a request is asserted or awaiting its response.
func (p *FetchPort) Busy() bool { return p.reqOut || p.waiting }

// Interest returns the address whose response the port is tracking.
func (p *FetchPort) Interest() uint32 { return p.interest }

// Reset restores the port to its post-reset idle state.
func (p *FetchPort) Reset() {
	*p = FetchPort{allowDrop: p.allowDrop}
}
