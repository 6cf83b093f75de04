package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvfetch/timing/core"
	"github.com/sarchlab/rvfetch/timing/fetch"
	"github.com/sarchlab/rvfetch/timing/imem"
)

var _ = Describe("Core", func() {
	var (
		mem *imem.Memory
		c   *core.Core
	)

	BeforeEach(func() {
		mem = imem.NewMemory()
		c = core.NewCore(mem)
	})

	Describe("sequential fetching", func() {
		It("should deliver back-to-back 32-bit instructions in order", func() {
			mem.Write32(0x0, 0xDEADBEEF)
			mem.Write32(0x4, 0x0000FEFF)

			c.RunCycles(6)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0xDEADBEEF},
				{PC: 0x4, Instr: 0x0000FEFF},
			}))
		})

		It("should split a compressed pair and bridge a word boundary", func() {
			// Word 0: compressed at 0x0, then the low half of a 32-bit
			// instruction in the upper parcel. Word 4 completes it and
			// carries another compressed parcel on top.
			mem.Write32(0x0, 0x00030001)
			mem.Write32(0x4, 0x0001BBBB)

			c.RunCycles(6)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00030001},
				{PC: 0x2, Instr: 0xBBBB0003},
				{PC: 0x6, Instr: 0x00010001},
			}))
		})

		It("should reconstruct the exact parcel stream of mixed-width code", func() {
			mem.Write32(0x0, 0x12345687)
			mem.Write32(0x4, 0x85224561)
			mem.Write32(0x8, 0xFEDCBA93)
			mem.Write32(0xC, 0x00C0FFEF)

			c.RunCycles(10)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x12345687},
				{PC: 0x4, Instr: 0x85224561},
				{PC: 0x6, Instr: 0x85228522},
				{PC: 0x8, Instr: 0xFEDCBA93},
				{PC: 0xC, Instr: 0x00C0FFEF},
			}))
		})

		It("should chain instructions spanning consecutive word boundaries", func() {
			mem.Write32(0x0, 0x00C30001)
			mem.Write32(0x4, 0x87C38223)
			mem.Write32(0x8, 0x00459AB3)

			c.RunCycles(8)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00C30001},
				{PC: 0x2, Instr: 0x822300C3},
				{PC: 0x6, Instr: 0x9AB387C3},
				{PC: 0xA, Instr: 0x00450045},
			}))
		})

		It("should start fetching at the boot address", func() {
			mem.Write32(0x200, 0x11112223)
			c.SetBootAddr(0x200)

			c.RunCycles(3)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x200, Instr: 0x11112223},
			}))
		})
	})

	Describe("stalling", func() {
		It("should produce the same stream with stalls injected", func() {
			program := func(m *imem.Memory) {
				m.Write32(0x0, 0x12345687)
				m.Write32(0x4, 0x85224561)
				m.Write32(0x8, 0xFEDCBA93)
				m.Write32(0xC, 0x00C0FFEF)
			}

			program(mem)
			c.RunCycles(14)
			reference := c.Trace()

			stalledMem := imem.NewMemory()
			program(stalledMem)
			stalled := core.NewCore(stalledMem)
			stalled.RunCycles(4)
			stalled.SetStall(true)
			stalled.RunCycles(3)
			stalled.SetStall(false)
			stalled.RunCycles(10)

			Expect(stalled.Trace()).To(Equal(reference))
		})

		It("should not fetch while fetching is disabled", func() {
			mem.Write32(0x0, 0xDEADBEEF)
			c.SetFetchEnable(false)

			c.RunCycles(5)

			Expect(c.Trace()).To(BeEmpty())
			Expect(mem.Stats().Requests).To(Equal(uint64(0)))
			Expect(c.Stats().WaitCycles).To(Equal(uint64(5)))
		})
	})

	Describe("branches", func() {
		BeforeEach(func() {
			mem.Write32(0x0, 0x00102183)
			mem.Write32(0x4, 0x00000197)
			mem.Write32(0x8, 0xFEDCBA93)
		})

		It("should bubble while a branch resolves and resume without gaps when not taken", func() {
			c.RunCycles(3)
			Expect(c.Trace()).To(HaveLen(1))

			c.Branch(fetch.BranchConditional, false, 0x999)
			c.RunCycles(5)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00102183},
				{PC: 0x4, Instr: 0x00000197},
				{PC: 0x8, Instr: 0xFEDCBA93},
			}))
			Expect(c.Stats().Bubbles).To(Equal(uint64(2)))
			Expect(c.Stats().Redirects).To(Equal(uint64(0)))
		})

		It("should resume a word-spanning fetch without gaps when not taken", func() {
			mem.Write32(0x0, 0x00C30001)
			mem.Write32(0x4, 0x00058223)
			mem.Write32(0x8, 0xFEDCBA93)

			// The branch reaches decode with a crossword fetch in flight;
			// its completion arrives during the detour.
			c.RunCycles(3)
			c.Branch(fetch.BranchConditional, false, 0x999)
			c.RunCycles(6)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00C30001},
				{PC: 0x2, Instr: 0x822300C3},
				{PC: 0x6, Instr: 0x00050005},
				{PC: 0x8, Instr: 0xFEDCBA93},
			}))
			Expect(c.Stats().Bubbles).To(Equal(uint64(2)))
		})

		It("should fetch from a taken branch's half-word target", func() {
			mem.Write32(0x100, 0x8FF18001)

			c.RunCycles(3)
			c.Branch(fetch.BranchConditional, true, 0x102)
			c.RunCycles(4)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00102183},
				{PC: 0x102, Instr: 0x8FF18FF1},
			}))
			Expect(c.Trace()[1].PC & 0x3).To(Equal(uint32(0x2)))
			Expect(c.Stats().Bubbles).To(Equal(uint64(2)))
			Expect(c.Stats().Redirects).To(Equal(uint64(1)))
		})

		It("should treat an unconditional jump as always taken", func() {
			mem.Write32(0x40, 0x00C0FFEF)

			c.RunCycles(3)
			c.Branch(fetch.BranchUnconditional, false, 0x40)
			c.RunCycles(4)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00102183},
				{PC: 0x40, Instr: 0x00C0FFEF},
			}))
		})
	})

	Describe("exceptions and redirects", func() {
		BeforeEach(func() {
			mem.Write32(0x0, 0x00102183)
			mem.Write32(0x4, 0x00000197)
			mem.Write32(0x8, 0x00100073)
		})

		It("should vector to the interrupt handler and ignore the superseded fetch", func() {
			c.RunCycles(3)
			c.RaiseException(fetch.CauseInterrupt)
			c.RunCycles(4)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00102183},
				{PC: 0x8, Instr: 0x00100073},
			}))
			Expect(c.Stats().Redirects).To(Equal(uint64(1)))
		})

		It("should honor a debug override to a half-word address", func() {
			mem.Write32(0x80, 0x4FF18001)

			c.RunCycles(3)
			c.Redirect(fetch.SelDebug, 0x82)
			c.RunCycles(4)

			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0x00102183},
				{PC: 0x82, Instr: 0x4FF14FF1},
			}))
		})
	})

	Describe("statistics", func() {
		It("should account every cycle as a fetch, a bubble, or a wait", func() {
			mem.Write32(0x0, 0x00102183)

			c.RunCycles(3)
			c.Branch(fetch.BranchConditional, false, 0x999)
			c.RunCycles(5)

			stats := c.Stats()
			Expect(stats.Cycles).To(Equal(uint64(8)))
			Expect(stats.Fetched + stats.Bubbles + stats.WaitCycles).To(Equal(stats.Cycles))
			Expect(stats.IPC()).To(BeNumerically("~", float64(stats.Fetched)/8.0))
		})
	})

	Describe("Reset", func() {
		It("should restart from boot with a clean trace", func() {
			mem.Write32(0x0, 0xDEADBEEF)
			c.RunCycles(4)
			Expect(c.Trace()).NotTo(BeEmpty())

			c.Reset()
			Expect(c.Trace()).To(BeEmpty())
			Expect(c.Stats().Cycles).To(Equal(uint64(0)))

			c.RunCycles(3)
			Expect(c.Trace()).To(Equal([]core.Fetched{
				{PC: 0x0, Instr: 0xDEADBEEF},
			}))
		})
	})

	Describe("with a realistic memory hierarchy", func() {
		It("should deliver the same stream, only later", func() {
			words := []uint32{0xDEADBEEF, 0x0000FEFF, 0xFEDCBA93, 0x00C0FFEF}
			fast := imem.NewMemory()
			slow := imem.NewMemory(
				imem.WithConfig(&imem.Config{GrantLatency: 1, ResponseLatency: 2}),
				imem.WithL1I(imem.DefaultL1IConfig()),
			)
			for i, w := range words {
				fast.Write32(uint32(i*4), w)
				slow.Write32(uint32(i*4), w)
			}

			fastCore := core.NewCore(fast)
			slowCore := core.NewCore(slow)
			fastCore.RunCycles(12)
			slowCore.RunCycles(80)

			Expect(len(fastCore.Trace())).To(BeNumerically(">=", len(words)))
			Expect(len(slowCore.Trace())).To(BeNumerically(">=", len(words)))
			Expect(slowCore.Trace()[:len(words)]).To(Equal(fastCore.Trace()[:len(words)]))
			Expect(slow.CacheStats().Hits).To(BeNumerically(">", 0))
		})
	})
})
