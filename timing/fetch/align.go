package fetch

// Assemble reconstructs the candidate instruction word and its PC from the
// latest fetch response, the half-word cache, and the alignment flags that
// describe the slot currently being served. Pure combinational logic; the
// sequencer decides separately whether the result is committed as valid.
//
// Cases:
//   - aligned: the fetched word as-is; PC is the response address with the
//     low 2 bits cleared.
//   - unaligned, crossword: the new word's low half supplies instruction
//     bits 31:16 and the cached upper half supplies bits 15:0; PC is the
//     cached word's address with low bits set to 10.
//   - unaligned, non-crossword: the word's upper half holds a complete
//     16-bit instruction; it is replicated into both halves so the unused
//     low half never exposes stale data. PC is the response address with
//     low bits set to 10.
func Assemble(data uint32, addr uint32, cache HalfWordCache, unaligned, crossword bool) (word uint32, pc uint32) {
	switch {
	case unaligned && crossword:
		return data<<16 | uint32(cache.Upper), (cache.Addr &^ 0x3) | 0x2
	case unaligned:
		upper := data >> 16
		return upper<<16 | upper, (addr &^ 0x3) | 0x2
	default:
		return data, addr &^ 0x3
	}
}
