package fetch

// HalfWordCache retains the upper 16 bits of the most recently fetched word
// together with the address it came from. It is overwritten every cycle
// fetch is not stalled, whether or not it ends up being used, and is what
// lets a 32-bit instruction that starts in one word's upper half be
// reassembled once the next word arrives.
type HalfWordCache struct {
	// Upper is the cached upper half of the last fetched word.
	Upper uint16

	// Addr is the word address the cached half came from.
	Addr uint32
}

// Clear resets the cache to empty state.
func (c *HalfWordCache) Clear() {
	c.Upper = 0
	c.Addr = 0
}

// IFIDRegister is the IF→decode latch. It updates only when decode is not
// stalled; while decode is stalled it holds its previous value, preserving
// exactly-once delivery of each instruction.
type IFIDRegister struct {
	// Valid indicates the latch holds a delivered instruction.
	Valid bool

	// PC is the program counter of the latched instruction.
	PC uint32

	// InstructionWord is the reassembled 32-bit instruction word. For a
	// 16-bit instruction the relevant parcel sits in the low half.
	InstructionWord uint32
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	r.Valid = false
	r.PC = 0
	r.InstructionWord = 0
}

// fetchResponse is the assembled candidate instruction snapshotted on the
// cycle its data became available, so Valid* states can hold it across
// cycles without reassembling from registers that have since moved on.
type fetchResponse struct {
	word uint32
	pc   uint32
}
