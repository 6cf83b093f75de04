// Package fetch provides the cycle-accurate instruction-fetch stage model.
// It decides, cycle by cycle, which address to request from instruction
// memory, reassembles mixed 16-/32-bit instructions from the word-granular
// grant/valid fetch port, and presents a stable (instruction, PC) pair to
// the decode stage.
package fetch

// PCSelector selects the source of the next fetch address.
type PCSelector uint8

const (
	// SelBoot selects the boot base address (reset entry).
	SelBoot PCSelector = iota
	// SelJump selects the jump/branch target from the execute stage.
	SelJump
	// SelIncrement selects the word after the current fetch address.
	SelIncrement
	// SelException selects the exception vector for the current cause.
	SelException
	// SelExceptionReturn selects the saved exception-return PC.
	SelExceptionReturn
	// SelHWLoop selects the hardware-loop start address.
	SelHWLoop
	// SelDebug selects the debug-unit PC override.
	SelDebug
)

// String returns the selector name for diagnostics.
func (s PCSelector) String() string {
	switch s {
	case SelBoot:
		return "boot"
	case SelJump:
		return "jump"
	case SelIncrement:
		return "increment"
	case SelException:
		return "exception"
	case SelExceptionReturn:
		return "exception-return"
	case SelHWLoop:
		return "hwloop"
	case SelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ExcCause selects an exception vector within the boot-relative table.
type ExcCause uint8

const (
	// CauseReset is the reset/default cause.
	CauseReset ExcCause = iota
	// CauseIllegalInstruction is an illegal-instruction trap.
	CauseIllegalInstruction
	// CauseInterrupt is a maskable external interrupt.
	CauseInterrupt
	// CauseInterruptNM is a non-maskable interrupt.
	CauseInterruptNM
)

// Exception vector offsets. Each target is the boot base with its low
// 5 bits replaced by the per-cause offset.
const (
	excOffReset       = 0x00
	excOffIllegal     = 0x04
	excOffInterrupt   = 0x08
	excOffInterruptNM = 0x0C
)

// ExceptionTarget maps an exception cause to its vector address: the boot
// base with the low 5 bits replaced by a fixed per-cause offset. Total
// function; the default case covers reset and any unmapped cause value.
func ExceptionTarget(cause ExcCause, bootAddr uint32) uint32 {
	base := bootAddr &^ 0x1F
	switch cause {
	case CauseIllegalInstruction:
		return base | excOffIllegal
	case CauseInterrupt:
		return base | excOffInterrupt
	case CauseInterruptNM:
		return base | excOffInterruptNM
	default:
		return base | excOffReset
	}
}

// PCInputs carries the redirect source values feeding the PC mux.
type PCInputs struct {
	// BootAddr is the boot base address. Boot targets are always aligned.
	BootAddr uint32
	// JumpTarget is the branch/jump target from the execute stage.
	JumpTarget uint32
	// Cause selects the exception vector when SelException is chosen.
	Cause ExcCause
	// ReturnAddr is the saved exception-return PC.
	ReturnAddr uint32
	// HWLoopTarget is the hardware-loop start address.
	HWLoopTarget uint32
	// DebugPC is the debug-unit PC override value.
	DebugPC uint32
	// FetchAddr is the current fetch address, used by SelIncrement.
	FetchAddr uint32
}

// SelectPC maps a PC selector and its source values to the next fetch
// address. Pure function. The second return value is false for an
// unrecognized selector, in which case the boot/reset target is returned
// so the pipeline keeps making forward progress.
func SelectPC(sel PCSelector, in PCInputs) (uint32, bool) {
	switch sel {
	case SelBoot:
		return in.BootAddr &^ 0x3, true
	case SelJump:
		return in.JumpTarget, true
	case SelIncrement:
		return in.FetchAddr + 4, true
	case SelException:
		return ExceptionTarget(in.Cause, in.BootAddr), true
	case SelExceptionReturn:
		return in.ReturnAddr, true
	case SelHWLoop:
		return in.HWLoopTarget, true
	case SelDebug:
		return in.DebugPC, true
	default:
		return in.BootAddr &^ 0x3, false
	}
}

// UnalignedTarget reports whether a redirect lands on a half-word boundary.
// Only jump, exception-return, hardware-loop, and debug targets may be
// unaligned; boot and exception vectors are aligned by construction.
func UnalignedTarget(sel PCSelector, addr uint32) bool {
	switch sel {
	case SelJump, SelExceptionReturn, SelHWLoop, SelDebug:
		return addr&0x2 != 0
	default:
		return false
	}
}
