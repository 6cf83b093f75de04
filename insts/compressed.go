// Package insts provides the instruction-encoding rules the fetch stage
// depends on: compressed-instruction detection and fixed encodings.
//
// The fetch stage never decodes instructions. The only property of an
// encoding it needs is its width, and the RISC-V encoding scheme makes that
// decidable from the two least-significant bits of any 16-bit parcel: a
// parcel whose bits 1:0 equal 0b11 starts a 32-bit instruction, anything
// else starts a 16-bit (compressed) one.
package insts

// NOP is the canonical 32-bit no-operation encoding (ADDI x0, x0, 0).
// The fetch stage injects it as a bubble while a branch outcome is pending.
const NOP uint32 = 0x00000013

// IsCompressedLow reports whether the low half of a fetched word starts a
// compressed instruction.
func IsCompressedLow(word uint32) bool {
	return word&0x3 != 0x3
}

// IsCompressedHigh reports whether the high half of a fetched word starts a
// compressed instruction (bits 17:16 of the word are the parcel's bits 1:0).
func IsCompressedHigh(word uint32) bool {
	return (word>>16)&0x3 != 0x3
}

// IsCompressed reports whether a 16-bit parcel starts a compressed
// instruction.
func IsCompressed(parcel uint16) bool {
	return parcel&0x3 != 0x3
}
