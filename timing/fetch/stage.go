package fetch

import (
	"github.com/sarchlab/rvfetch/insts"
)

// State identifies the fetch sequencer's current phase. Exactly one state
// is active per cycle.
type State uint8

const (
	// StateIdle means no fetch has been requested yet.
	StateIdle State = iota
	// StateWaitAligned waits for the response of a word-aligned fetch.
	StateWaitAligned
	// StateValidAligned holds a word-aligned instruction already fetched.
	StateValidAligned
	// StateWaitUnaligned waits for the response completing a half-word
	// aligned instruction slot.
	StateWaitUnaligned
	// StateValidUnaligned holds a half-word aligned instruction already
	// fetched.
	StateValidUnaligned
	// StateHandleBranch waits for the execute stage to resolve a branch
	// before deciding where to fetch next.
	StateHandleBranch
	// StateFetchUnaligned services a redirect to a half-word aligned target.
	StateFetchUnaligned
)

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitAligned:
		return "wait-aligned"
	case StateValidAligned:
		return "valid-aligned"
	case StateWaitUnaligned:
		return "wait-unaligned"
	case StateValidUnaligned:
		return "valid-unaligned"
	case StateHandleBranch:
		return "handle-branch"
	case StateFetchUnaligned:
		return "fetch-unaligned"
	default:
		return "unknown"
	}
}

// BranchKind classifies a control-flow instruction seen by the stage.
type BranchKind uint8

const (
	// BranchNone means no branch is present.
	BranchNone BranchKind = iota
	// BranchConditional is a conditional branch whose outcome is decided
	// at the execute stage.
	BranchConditional
	// BranchUnconditional is a jump that is always taken.
	BranchUnconditional
)

// CycleIn is the snapshot of every input the stage samples in one cycle.
type CycleIn struct {
	// Req asks the stage to produce the next instruction (fetch enable).
	Req bool
	// StallIF inhibits fetching and freezes the half-word cache.
	StallIF bool
	// StallID freezes the IF→decode latch.
	StallID bool

	// PCSel selects the redirect source when a redirect applies.
	PCSel PCSelector
	// PC carries the redirect source values.
	PC PCInputs
	// PCSet requests an immediate redirect to the selected PC (exception
	// entry, debug override, boot re-entry). Ignored while a branch is
	// being resolved.
	PCSet bool

	// BranchInDecode reports an unresolved branch sitting in decode.
	BranchInDecode BranchKind
	// ExBranchKind is the resolved branch kind at the execute stage,
	// sampled only in the handle-branch state.
	ExBranchKind BranchKind
	// ExBranchTaken is the resolved taken/not-taken decision.
	ExBranchTaken bool

	// Mem is the memory-side wire snapshot for this cycle.
	Mem MemIn
}

// CycleOut is everything the stage drives in one cycle.
type CycleOut struct {
	// Mem is the stage-to-memory wire snapshot for this cycle.
	Mem MemOut

	// FetchValid pulses when the IF→decode latch was updated this cycle.
	FetchValid bool
	// Bubble marks the latched word as an injected no-operation rather
	// than a fetched instruction.
	Bubble bool

	// Instr and PC are the IF→decode latch contents after this cycle.
	Instr uint32
	PC    uint32

	// FetchPC is the in-flight fetch PC, exposed for diagnostics.
	FetchPC uint32
}

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithDiagnostics installs a sink for internal-consistency diagnostics.
// Diagnostics are informational only; the stage always masks the anomaly
// with a safe default so the pipeline keeps making progress.
func WithDiagnostics(fn func(format string, args ...any)) StageOption {
	return func(s *Stage) {
		s.diag = fn
	}
}

// WithAllowDrop enables the structural cancel-in-flight hook on the fetch
// port. The stage itself never exercises it; the hook exists for
// surrounding systems that need to discard in-flight fetches.
func WithAllowDrop() StageOption {
	return func(s *Stage) {
		s.port.allowDrop = true
	}
}

// Stage is the instruction-fetch stage. All architectural state lives in
// its fields and advances exactly once per Tick; Reset restores the defined
// initial value of every register.
type Stage struct {
	port  FetchPort
	state State

	// Saved context for resuming after a branch-resolution detour.
	resumeState     State
	resumeUnaligned bool
	resumeCrossword bool

	// One-cycle-delayed alignment flags describing the slot being served.
	unaligned bool
	crossword bool

	cache     HalfWordCache
	resp      fetchResponse
	delivered bool

	ifid    IFIDRegister
	fetchPC uint32

	diag func(format string, args ...any)
}

// NewStage creates a fetch stage in its post-reset state.
func NewStage(opts ...StageOption) *Stage {
	s := &Stage{}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset forces every register to its defined initial value. It models the
// asynchronous reset input and is always available as the recovery path.
func (s *Stage) Reset() {
	allowDrop := s.port.allowDrop
	s.port.Reset()
	s.port.allowDrop = allowDrop
	s.state = StateIdle
	s.resumeState = StateIdle
	s.resumeUnaligned = false
	s.resumeCrossword = false
	s.unaligned = false
	s.crossword = false
	s.cache.Clear()
	s.resp = fetchResponse{}
	s.delivered = false
	s.ifid.Clear()
	s.fetchPC = 0
}

// State returns the sequencer state, for tests and trace output.
func (s *Stage) State() State { return s.state }

// IFID returns the IF→decode latch.
func (s *Stage) IFID() *IFIDRegister { return &s.ifid }

// Port returns the fetch port adapter.
func (s *Stage) Port() *FetchPort { return &s.port }

// FetchPC returns the in-flight fetch PC.
func (s *Stage) FetchPC() uint32 { return s.fetchPC }

func (s *Stage) diagf(format string, args ...any) {
	if s.diag != nil {
		s.diag(format, args...)
	}
}

func (s *Stage) issueFetch(addr uint32) {
	s.port.Issue(addr)
	s.fetchPC = addr
}

// issueNext issues the sequentially next fetch after the word at addr.
func (s *Stage) issueNext(addr uint32) {
	next, _ := SelectPC(SelIncrement, PCInputs{FetchAddr: addr &^ 0x3})
	s.issueFetch(next)
}

// redirect issues a fetch at the currently selected redirect target and
// returns the state and alignment flag for servicing it.
func (s *Stage) redirect(in CycleIn) (State, bool) {
	target, ok := SelectPC(in.PCSel, in.PC)
	if !ok {
		s.diagf("fetch: unrecognized pc selector %d, redirecting to boot", in.PCSel)
	}
	s.issueFetch(target)
	if UnalignedTarget(in.PCSel, target) {
		return StateFetchUnaligned, true
	}
	return StateWaitAligned, false
}

// Tick advances the stage by one clock cycle. All outputs for the cycle are
// fully determined by the input snapshot and the registered state; there is
// no suspension within a cycle.
func (s *Stage) Tick(in CycleIn) CycleOut {
	s.port.Observe(in.Mem)

	data := s.port.Data()
	addr := s.port.DataAddr()

	// Snapshot the assembled candidate the cycle its data arrives, while
	// the half-word cache still holds the previous word's upper half.
	if s.port.DataValid() {
		s.resp.word, s.resp.pc = Assemble(data, addr, s.cache, s.unaligned, s.crossword)
	}

	branchPending := in.BranchInDecode != BranchNone || s.state == StateHandleBranch
	advance := in.Req && !in.StallID && !in.StallIF && !branchPending
	canFetch := !in.StallIF

	next := s.state
	nextUnaligned := s.unaligned
	nextCrossword := s.crossword
	ready := false
	consumed := false
	redirected := false

	switch {
	case in.PCSet && s.state != StateHandleBranch:
		// External redirect preempts normal sequencing. While fetching is
		// inhibited the redirect waits; the requester holds PCSet.
		if canFetch {
			next, nextUnaligned = s.redirect(in)
			nextCrossword = false
			redirected = true
		}

	default:
		switch s.state {
		case StateIdle:
			if in.Req && canFetch && in.BranchInDecode == BranchNone {
				next, nextUnaligned = s.redirect(in)
				nextCrossword = false
				redirected = true
			}

		case StateWaitAligned, StateValidAligned:
			if s.port.HasData() {
				ready = true
				if advance {
					consumed = true
					nextCrossword = false
					if insts.IsCompressedLow(data) {
						nextUnaligned = true
						if insts.IsCompressedHigh(data) {
							// The following compressed instruction is
							// already in hand; no fetch needed.
							next = StateValidUnaligned
						} else {
							s.issueNext(addr)
							nextCrossword = true
							next = StateWaitUnaligned
						}
					} else {
						nextUnaligned = false
						s.issueNext(addr)
						next = StateWaitAligned
					}
				} else {
					next = StateValidAligned
				}
			}

		case StateWaitUnaligned, StateValidUnaligned:
			if s.port.HasData() {
				ready = true
				if advance {
					consumed = true
					if s.crossword {
						nextCrossword = false
						nextUnaligned = true
						if insts.IsCompressedHigh(data) {
							next = StateValidUnaligned
						} else {
							s.issueNext(addr)
							nextCrossword = true
							next = StateWaitUnaligned
						}
					} else {
						// The pending half-word slot must hold a compressed
						// instruction; anything else is an internal
						// inconsistency, masked by advancing anyway.
						if !insts.IsCompressedHigh(data) {
							s.diagf("fetch: 32-bit encoding in a half-word slot at %#x", addr)
						}
						nextUnaligned = false
						nextCrossword = false
						s.issueNext(addr)
						next = StateWaitAligned
					}
				} else {
					next = StateValidUnaligned
				}
			}

		case StateFetchUnaligned:
			if s.port.HasData() {
				if insts.IsCompressedHigh(data) {
					ready = true
					if advance {
						consumed = true
						s.issueNext(addr)
						nextUnaligned = false
						nextCrossword = false
						next = StateWaitAligned
					} else {
						next = StateValidUnaligned
					}
				} else if canFetch {
					// The redirected instruction spans into the next word.
					s.issueNext(addr)
					nextCrossword = true
					next = StateWaitUnaligned
				}
			}

		case StateHandleBranch:
			switch {
			case in.ExBranchKind == BranchNone:
				// Outcome not resolved yet; keep bubbling.
			case in.ExBranchKind == BranchConditional && !in.ExBranchTaken:
				// Not taken: resume exactly where sequencing left off. The
				// in-flight fetch was never dropped, so no reissue is
				// needed and nothing is duplicated or skipped.
				next = s.resumeState
				nextUnaligned = s.resumeUnaligned
				nextCrossword = s.resumeCrossword
			default:
				if canFetch {
					next, nextUnaligned = s.redirect(in)
					nextCrossword = false
					redirected = true
				}
			}

		default:
			s.diagf("fetch: unreachable sequencer state %d, resetting", s.state)
			next = StateIdle
			nextUnaligned = false
			nextCrossword = false
		}

		// An unresolved branch in decode preempts whatever transition was
		// just computed; remember it so sequencing can resume if the
		// branch turns out not taken.
		if in.BranchInDecode != BranchNone && s.state != StateHandleBranch {
			s.resumeState = next
			s.resumeUnaligned = nextUnaligned
			s.resumeCrossword = nextCrossword
			next = StateHandleBranch
		}
	}

	out := CycleOut{}
	if !in.StallID {
		switch {
		case branchPending:
			// Inject a bubble instead of a stale instruction while the
			// branch outcome is pending.
			s.ifid.InstructionWord = insts.NOP
			s.ifid.Valid = true
			out.FetchValid = true
			out.Bubble = true
		case ready && !s.delivered:
			s.ifid.InstructionWord = s.resp.word
			s.ifid.PC = s.resp.pc
			s.ifid.Valid = true
			out.FetchValid = true
		}
	}

	if consumed || redirected {
		s.delivered = false
	} else if out.FetchValid && !out.Bubble {
		s.delivered = true
	}

	// Advancing within the same fetched word re-derives the candidate for
	// the new slot, after the latch has taken the consumed one. The
	// response register still holds the word.
	if consumed && s.port.HasData() {
		s.resp.word, s.resp.pc = Assemble(data, addr, s.cache, nextUnaligned, nextCrossword)
	}

	// The half-word cache latches the latest response unconditionally,
	// whether or not it ends up being used.
	if !in.StallIF {
		s.cache.Upper = uint16(data >> 16)
		s.cache.Addr = addr &^ 0x3
	}

	s.state = next
	s.unaligned = nextUnaligned
	s.crossword = nextCrossword

	out.Mem = s.port.Wires()
	out.Instr = s.ifid.InstructionWord
	out.PC = s.ifid.PC
	out.FetchPC = s.fetchPC
	return out
}
