package imem

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig holds L1 instruction cache parameters.
type CacheConfig struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways).
	Associativity int
	// BlockSize in bytes (cache line size).
	BlockSize int
	// HitLatency in cycles, added on top of the protocol response latency.
	HitLatency uint64
	// MissLatency in cycles, added on top of the protocol response latency.
	MissLatency uint64
}

// DefaultL1IConfig returns the configuration of a small embedded-class
// instruction cache: 16KB, 4-way, 32B lines.
func DefaultL1IConfig() CacheConfig {
	return CacheConfig{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     32,
		HitLatency:    0,
		MissLatency:   10,
	}
}

// Validate checks that the cache geometry is usable.
func (c CacheConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("cache size must be > 0")
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0")
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block size must be > 0")
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("cache size %d is not a whole number of sets", c.Size)
	}
	return nil
}

// CacheStatistics holds instruction cache performance counters.
type CacheStatistics struct {
	Reads     uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// BackingStore is the next level in the instruction memory hierarchy.
type BackingStore interface {
	// ReadBlock fetches size bytes starting at the block-aligned addr.
	ReadBlock(addr uint32, size int) []byte
}

// Cache is a read-only L1 instruction cache built on Akita cache
// components. Instruction memory is never written through this path, so
// there is no dirty state and no writeback.
type Cache struct {
	config    CacheConfig
	directory *akitacache.DirectoryImpl
	dataStore [][]byte
	backing   BackingStore
	stats     CacheStatistics
}

// NewCache creates a cache with the given configuration and backing store.
// An unusable geometry falls back to the defaults.
func NewCache(config CacheConfig, backing BackingStore) *Cache {
	if err := config.Validate(); err != nil {
		config = DefaultL1IConfig()
	}

	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() CacheConfig {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStatistics {
	return c.stats
}

// blockIndex computes the index into dataStore for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Read fetches the word at addr, returning the word and the extra latency
// the access adds on top of the base protocol timing.
func (c *Cache) Read(addr uint32) (word uint32, extraLatency uint64) {
	c.stats.Reads++

	blockAddr := uint64(addr) / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.wordFromBlock(block, addr), c.config.HitLatency
	}

	// Miss: fill the line from the backing store.
	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// Degenerate directory configuration; answer from backing store.
		data := c.backing.ReadBlock(addr&^0x3, 4)
		return leWord(data), c.config.MissLatency
	}

	if victim.IsValid {
		c.stats.Evictions++
	}

	victimData := c.dataStore[c.blockIndex(victim)]
	copy(victimData, c.backing.ReadBlock(uint32(blockAddr), c.config.BlockSize))

	victim.Tag = blockAddr
	victim.IsValid = true
	c.directory.Visit(victim)

	return c.wordFromBlock(victim, addr), c.config.MissLatency
}

// Reset invalidates all cache lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = CacheStatistics{}
}

func (c *Cache) wordFromBlock(block *akitacache.Block, addr uint32) uint32 {
	offset := (uint64(addr) &^ 0x3) % uint64(c.config.BlockSize)
	return leWord(c.dataStore[c.blockIndex(block)][offset:])
}

// leWord assembles a little-endian word from the first 4 bytes of data.
func leWord(data []byte) uint32 {
	var word uint32
	for i := 0; i < 4 && i < len(data); i++ {
		word |= uint32(data[i]) << (i * 8)
	}
	return word
}
