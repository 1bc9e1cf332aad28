package sim_test

// Cross-driver equivalence: every scenario here runs under all three
// drivers and must land on the same final register file, memory image,
// and status, per spec.md §8's triple-equivalence property.

import (
	"math/rand"
	"testing"

	"github.com/JulianKnodt/risc-v-sim/internal/isa"
	"github.com/JulianKnodt/risc-v-sim/internal/sim"
	"github.com/JulianKnodt/risc-v-sim/internal/sim/inorder"
	"github.com/JulianKnodt/risc-v-sim/internal/sim/ooo"
	"github.com/JulianKnodt/risc-v-sim/internal/sim/sequential"
	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeI(imm12 uint32, rs1, funct3, rd, opcode uint32) uint32 {
	return ((imm12 & 0xFFF) << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeS(imm12 uint32, rs2, rs1, funct3, opcode uint32) uint32 {
	hi := (imm12 >> 5) & 0x7F
	lo := imm12 & 0x1F
	return (hi << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (lo << 7) | opcode
}

func encodeB(imm13 uint32, rs2, rs1, funct3, opcode uint32) uint32 {
	bit12 := (imm13 >> 12) & 1
	bit11 := (imm13 >> 11) & 1
	bits10_5 := (imm13 >> 5) & 0x3F
	bits4_1 := (imm13 >> 1) & 0xF
	return (bit12 << 31) | (bits10_5 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) |
		(bits4_1 << 8) | (bit11 << 7) | opcode
}

func encodeU(imm20 uint32, rd, opcode uint32) uint32 {
	return (imm20 << 12) | (rd << 7) | opcode
}

func encodeJ(imm21 uint32, rd, opcode uint32) uint32 {
	bit20 := (imm21 >> 20) & 1
	bits10_1 := (imm21 >> 1) & 0x3FF
	bit11 := (imm21 >> 11) & 1
	bits19_12 := (imm21 >> 12) & 0xFF
	return (bit20 << 31) | (bits10_1 << 21) | (bit11 << 20) | (bits19_12 << 12) | (rd << 7) | opcode
}

func writeImage(t *testing.T, st *sim.State, words []uint32) {
	t.Helper()
	for i, w := range words {
		if err := st.Mem.Write(i*4, word.Word(w), 4); err != nil {
			t.Fatalf("writing image word %d: %v", i, err)
		}
	}
}

func runAll(t *testing.T, memSize int, words []uint32) (seq, io, o *sim.State) {
	t.Helper()
	seq, io, o = sim.New(memSize), sim.New(memSize), sim.New(memSize)
	writeImage(t, seq, words)
	writeImage(t, io, words)
	writeImage(t, o, words)
	sequential.Run(seq)
	inorder.Run(io)
	ooo.Run(o)
	return
}

func assertEquivalent(t *testing.T, words []uint32, memSize int) {
	t.Helper()
	seq, io, o := runAll(t, memSize, words)

	if seq.Status != io.Status || seq.Status != o.Status {
		t.Fatalf("status mismatch: sequential=%v inorder=%v ooo=%v", seq.Status, io.Status, o.Status)
	}

	sSnap, ioSnap, oSnap := seq.Regs.Snapshot(), io.Regs.Snapshot(), o.Regs.Snapshot()
	for i := range sSnap {
		if sSnap[i] != ioSnap[i] || sSnap[i] != oSnap[i] {
			t.Errorf("x%d mismatch: sequential=%x inorder=%x ooo=%x", i, sSnap[i], ioSnap[i], oSnap[i])
		}
	}

	for addr := 0; addr < memSize; addr++ {
		sb, _ := seq.Mem.Read(addr, 1)
		ib, _ := io.Mem.Read(addr, 1)
		ob, _ := o.Mem.Read(addr, 1)
		if sb != ib || sb != ob {
			t.Fatalf("memory mismatch at %#x: sequential=%x inorder=%x ooo=%x", addr, sb, ib, ob)
		}
	}
}

// TestTripleEquivalenceCanonicalScenarios reruns every end-to-end scenario
// from spec.md §8 under all three drivers and checks they agree.
func TestTripleEquivalenceCanonicalScenarios(t *testing.T) {
	cases := map[string][]uint32{
		"addi chain": {
			encodeI(7, 0, 0b000, 1, 0b0010011),
			encodeI(0xFFD, 1, 0b000, 2, 0b0010011), // -3, 12-bit two's complement
			encodeI(0, 2, 0b000, 3, 0b0010011),
			uint32(isa.Halt),
		},
		"branch forward": {
			encodeI(1, 0, 0b000, 1, 0b0010011),
			encodeI(1, 0, 0b000, 2, 0b0010011),
			encodeB(8, 2, 1, 0b000, 0b1100011),
			encodeI(99, 0, 0b000, 3, 0b0010011),
			encodeI(77, 0, 0b000, 4, 0b0010011),
			uint32(isa.Halt),
		},
		"jal jalr round trip": {
			encodeJ(16, 1, 0b1101111),
			uint32(isa.Halt),
			0,
			0,
			encodeI(42, 0, 0b000, 10, 0b0010011),
			encodeI(0, 1, 0b000, 0, 0b1100111),
		},
		"lui auipc": {
			encodeU(0x12345, 1, 0b0110111),
			encodeU(0, 2, 0b0010111),
			uint32(isa.Halt),
		},
	}
	for name, words := range cases {
		words := words
		t.Run(name, func(t *testing.T) {
			assertEquivalent(t, words, 4096)
		})
	}
}

func TestTripleEquivalenceLoadStoreByteSignExtension(t *testing.T) {
	sb := encodeS(256, 1, 0, 0b000, 0b0100011)
	lb := encodeI(256, 0, 0b000, 5, 0b0000011)
	lbu := encodeI(256, 0, 0b100, 6, 0b0000011)
	assertEquivalent(t, []uint32{
		encodeI(0xFF, 0, 0b000, 1, 0b0010011),
		sb,
		lb,
		lbu,
		uint32(isa.Halt),
	}, 4096)
}

func TestTripleEquivalenceMemoryFault(t *testing.T) {
	assertEquivalent(t, nil, 2)
}

// TestTripleEquivalenceRandomizedAluStreams generates straight-line
// arithmetic streams over a handful of registers and checks all three
// drivers land on the same final state. Control flow is deliberately
// excluded: RAW chains of random length and shape are the interesting
// case for the out-of-order scheduler's dependency oracle, and a fixed
// seed keeps the generated programs reproducible.
func TestTripleEquivalenceRandomizedAluStreams(t *testing.T) {
	opcodes := []uint32{0b0110011, 0b0110011, 0b0110011} // R-type add/sub/and/or/xor family
	funct3s := []uint32{0b000, 0b000, 0b111, 0b110, 0b100}
	funct7s := []uint32{0, 0x20, 0, 0, 0} // funct7=0x20 pairs with funct3=000 for sub

	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 20; run++ {
		n := 5 + rng.Intn(15)
		var words []uint32
		for i := 0; i < n; i++ {
			rd := uint32(1 + rng.Intn(5))
			switch rng.Intn(2) {
			case 0:
				rs1 := uint32(rng.Intn(6))
				imm := uint32(rng.Intn(200)) - 100
				words = append(words, encodeI(imm&0xFFF, rs1, 0b000, rd, 0b0010011))
			default:
				rs1 := uint32(rng.Intn(6))
				rs2 := uint32(rng.Intn(6))
				k := rng.Intn(len(funct3s))
				words = append(words, encodeR(funct7s[k], rs2, rs1, funct3s[k], rd, opcodes[0]))
			}
		}
		words = append(words, uint32(isa.Halt))
		assertEquivalent(t, words, 4096)
	}
}

// TestPCMonotonicityUnderStraightLineCode checks that PC advances by
// exactly 4 per retired instruction when no control-transfer instruction
// executes (spec.md §8).
func TestPCMonotonicityUnderStraightLineCode(t *testing.T) {
	words := []uint32{
		encodeI(1, 0, 0b000, 1, 0b0010011),
		encodeI(1, 1, 0b000, 1, 0b0010011),
		encodeI(1, 1, 0b000, 1, 0b0010011),
		uint32(isa.Halt),
	}
	st := sim.New(4096)
	writeImage(t, st, words)
	sequential.Run(st)
	if st.Status != sim.Done {
		t.Fatalf("status = %v, want Done", st.Status)
	}
	// Halt doesn't stage a PC directive, so the fetch-side increment from
	// its own fetch still lands: PC advances one word per retired
	// instruction including Halt itself (spec.md's ADDI-chain scenario
	// expects pc=16 after three addi plus a fourth, Halt, word).
	if got := st.Regs.PCRead(); got != word.Word(len(words))*4 {
		t.Errorf("pc = %d, want %d (one word per retired instruction, Halt included)", got, word.Word(len(words))*4)
	}
}
