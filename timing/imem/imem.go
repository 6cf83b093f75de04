// Package imem models the instruction memory behind the fetch port: a
// word-granular backing store answered over the request/grant/valid
// protocol with configurable latencies and an optional L1 instruction
// cache in front of it.
package imem

import (
	"github.com/sarchlab/rvfetch/timing/fetch"
)

// phase tracks where the protocol engine is within one transaction.
type phase uint8

const (
	phaseIdle phase = iota
	phaseGrantWait
	phaseRespWait
)

// Statistics holds protocol-level counters.
type Statistics struct {
	// Requests is the number of requests granted.
	Requests uint64
	// Responses is the number of responses delivered.
	Responses uint64
	// BusyCycles is the number of cycles a transaction was in flight.
	BusyCycles uint64
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithConfig sets the protocol timing configuration.
func WithConfig(config *Config) MemoryOption {
	return func(m *Memory) {
		m.config = config
	}
}

// WithL1I puts an L1 instruction cache with the given configuration in
// front of the backing store. Hit and miss latencies are added to the
// protocol's response latency.
func WithL1I(config CacheConfig) MemoryOption {
	return func(m *Memory) {
		m.cache = NewCache(config, m)
	}
}

// Memory is a cycle-accurate instruction memory with exactly one
// outstanding transaction: a request seen while a transaction is in flight
// is not granted until the response has been delivered. A granted request
// always yields exactly one response, in issue order.
type Memory struct {
	words  map[uint32]uint32
	config *Config
	cache  *Cache

	ph       phase
	count    uint64
	reqAddr  uint32
	respData uint32

	stats Statistics
}

// NewMemory creates an instruction memory with default timing.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		words:  make(map[uint32]uint32),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Write32 stores a word at the word-aligned address.
func (m *Memory) Write32(addr uint32, word uint32) {
	m.words[addr&^0x3] = word
}

// Read32 loads the word at the word-aligned address. Unwritten memory
// reads as zero.
func (m *Memory) Read32(addr uint32) uint32 {
	return m.words[addr&^0x3]
}

// LoadImage copies a little-endian byte image into memory starting at base.
func (m *Memory) LoadImage(base uint32, image []byte) {
	for i := 0; i < len(image); i += 4 {
		var word uint32
		for j := 0; j < 4 && i+j < len(image); j++ {
			word |= uint32(image[i+j]) << (j * 8)
		}
		m.Write32(base+uint32(i), word)
	}
}

// ReadBlock implements BackingStore for the L1I cache.
func (m *Memory) ReadBlock(addr uint32, size int) []byte {
	block := make([]byte, size)
	for i := 0; i < size; i += 4 {
		word := m.Read32(addr + uint32(i))
		for j := 0; j < 4 && i+j < size; j++ {
			block[i+j] = byte(word >> (j * 8))
		}
	}
	return block
}

// Stats returns protocol statistics.
func (m *Memory) Stats() Statistics {
	return m.stats
}

// CacheStats returns L1I statistics; zero counters when no cache is
// configured.
func (m *Memory) CacheStats() CacheStatistics {
	if m.cache == nil {
		return CacheStatistics{}
	}
	return m.cache.Stats()
}

// Reset clears the protocol engine and cache state. Memory contents are
// preserved.
func (m *Memory) Reset() {
	m.ph = phaseIdle
	m.count = 0
	m.reqAddr = 0
	m.respData = 0
	m.stats = Statistics{}
	if m.cache != nil {
		m.cache.Reset()
	}
}

// Tick advances the memory by one cycle, sampling the stage's request
// wires and driving the grant/valid wires for this cycle.
func (m *Memory) Tick(req bool, addr uint32) fetch.MemIn {
	var out fetch.MemIn

	switch m.ph {
	case phaseRespWait:
		m.stats.BusyCycles++
		m.count--
		if m.count == 0 {
			out.Valid = true
			out.Data = m.respData
			out.Addr = m.reqAddr
			m.ph = phaseIdle
			m.stats.Responses++
		}
		return out

	case phaseGrantWait:
		m.stats.BusyCycles++
		if !req {
			// Request withdrawn before grant.
			m.ph = phaseIdle
			return out
		}
		m.count--
		if m.count == 0 {
			m.grant(&out, addr)
		}
		return out

	default:
		if req {
			if m.config.GrantLatency == 0 {
				m.grant(&out, addr)
			} else {
				m.ph = phaseGrantWait
				m.count = m.config.GrantLatency
			}
			m.stats.BusyCycles++
		}
		return out
	}
}

// grant accepts the request at addr, looks the word up, and arms the
// response countdown.
func (m *Memory) grant(out *fetch.MemIn, addr uint32) {
	out.Grant = true
	m.reqAddr = addr &^ 0x3
	m.stats.Requests++

	extra := uint64(0)
	if m.cache != nil {
		m.respData, extra = m.cache.Read(m.reqAddr)
	} else {
		m.respData = m.Read32(m.reqAddr)
	}

	m.ph = phaseRespWait
	m.count = m.config.ResponseLatency + extra
}
