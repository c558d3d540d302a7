package machine

import (
	"fmt"
	"sort"
	"strings"
)

// Range is a half-open address interval [Start, End) of statically traced
// instruction bytes.
type Range struct {
	Start uint16
	End   uint16
}

// maxTraceIterations caps the reachability worklist; tracing past this
// bound indicates a miscoded opcode table rather than a legitimately large
// program, so Trace panics instead of looping forever.
const maxTraceIterations = 32768

// romLimit bounds which jump targets are worth adding to the worklist: only
// addresses below 0x4000 (the arcade map's ROM and RAM, all of the test
// map) are queued.
const romLimit = 0x4000

// Trace performs a reachability walk from the given entry points, producing
// a sorted list of non-overlapping ranges covering every byte statically
// reachable by following fall-through and direct branch targets. Indirect
// branches (PCHL) contribute no target, since it cannot be known statically.
func Trace(mem Memory, entries []uint16) []Range {
	if len(entries) == 0 {
		return nil
	}

	ranges := []Range{{entries[0], entries[0]}}
	worklist := append([]uint16(nil), entries...)
	curIdx := 0
	pc := entries[0]

	inRange := func(addr uint16) bool {
		for _, r := range ranges {
			if addr >= r.Start && addr < r.End {
				return true
			}
		}
		return false
	}

	insertRange := func(addr uint16) int {
		idx := sort.Search(len(ranges), func(i int) bool { return ranges[i].Start >= addr })
		ranges = append(ranges, Range{})
		copy(ranges[idx+1:], ranges[idx:])
		ranges[idx] = Range{addr, addr}
		return idx
	}

	for iterations := 0; ; iterations++ {
		if iterations > maxTraceIterations {
			panic("machine: disassembler trace exceeded 32768 iterations")
		}

		size, target, continues := classify(mem, pc)

		if target >= 0 && target < romLimit {
			worklist = append(worklist, uint16(target))
		}

		ranges[curIdx].End = pc + uint16(size)

		advanced := false
		if continues && size <= 3 {
			next := pc + uint16(size)
			if !inRange(next) {
				pc = next
				advanced = true
			}
		}

		if !advanced {
			found := false
			for len(worklist) > 0 {
				addr := worklist[len(worklist)-1]
				worklist = worklist[:len(worklist)-1]
				if !inRange(addr) {
					curIdx = insertRange(addr)
					pc = addr
					found = true
					break
				}
			}
			if !found {
				break
			}
		}
	}

	return mergeRanges(ranges)
}

func mergeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// classify reports the encoded size, jump target (or -1), and whether
// control continues to the next address for the instruction at pc. CALL
// and conditional JMP contribute a target but continue; unconditional JMP
// and RET do not continue; conditional RET continues.
func classify(mem Memory, pc uint16) (size int, target int, continues bool) {
	opcode := mem.Read(pc)
	inst := opcodeTable[opcode]
	size = int(inst.Size)
	target = -1
	continues = true

	readTarget := func() int { return int(Read16(mem, pc+1)) }

	switch {
	case opcode == 0xC3: // JMP
		target = readTarget()
		continues = false
	case opcode == 0xCD: // CALL
		target = readTarget()
	case opcode == 0xC9: // RET
		continues = false
	case opcode&0xC7 == 0xC2: // Jcc
		target = readTarget()
	case opcode&0xC7 == 0xC4: // Ccc
		target = readTarget()
	case opcode&0xC7 == 0xC0: // Rcc
		// continues either way
	case opcode&0xC7 == 0xC7: // RST n
		target = int((opcode >> 3) & 0x7 * 8)
	}

	return size, target, continues
}

//////////////////////////////////////////////////////////////////////////
// Textual rendering.

var regName = [8]string{"B", "C", "D", "E", "H", "L", "M", "A"}
var rpName = [4]string{"B", "D", "H", "SP"}
var stackRPName = [4]string{"B", "D", "H", "PSW"}
var condName = [8]string{"NZ", "Z", "NC", "C", "PO", "PE", "P", "M"}

// Disassemble decodes the instruction at addr into its encoded size and a
// case-sensitive mnemonic with operands in hex (2 or 4 digits).
func Disassemble(mem Memory, addr uint16) (text string, size byte) {
	opcode := mem.Read(addr)
	inst := opcodeTable[opcode]
	size = inst.Size

	var b2, b3 byte
	if size >= 2 {
		b2 = mem.Read(addr + 1)
	}
	if size >= 3 {
		b3 = mem.Read(addr + 2)
	}

	return decodeMnemonic(opcode, b2, b3), size
}

func decodeMnemonic(opcode, b2, b3 byte) string {
	switch {
	case opcode == 0x76:
		return "HLT"
	case opcode >= 0x40 && opcode <= 0x7F:
		return fmt.Sprintf("MOV %s,%s", regName[dst3(opcode)], regName[src3(opcode)])
	case opcode&0xC7 == 0x06:
		return fmt.Sprintf("MVI %s,%02Xh", regName[dst3(opcode)], b2)
	case opcode&0xCF == 0x01:
		return fmt.Sprintf("LXI %s,%04Xh", rpName[rpIndex(opcode)], imm16(b2, b3))
	case opcode == 0x3A:
		return fmt.Sprintf("LDA %04Xh", imm16(b2, b3))
	case opcode == 0x32:
		return fmt.Sprintf("STA %04Xh", imm16(b2, b3))
	case opcode == 0x2A:
		return fmt.Sprintf("LHLD %04Xh", imm16(b2, b3))
	case opcode == 0x22:
		return fmt.Sprintf("SHLD %04Xh", imm16(b2, b3))
	case opcode == 0x0A:
		return "LDAX B"
	case opcode == 0x1A:
		return "LDAX D"
	case opcode == 0x02:
		return "STAX B"
	case opcode == 0x12:
		return "STAX D"
	case opcode == 0xEB:
		return "XCHG"
	case opcode&0xF8 == 0x80:
		return "ADD " + regName[src3(opcode)]
	case opcode&0xF8 == 0x88:
		return "ADC " + regName[src3(opcode)]
	case opcode&0xF8 == 0x90:
		return "SUB " + regName[src3(opcode)]
	case opcode&0xF8 == 0x98:
		return "SBB " + regName[src3(opcode)]
	case opcode&0xF8 == 0xA0:
		return "ANA " + regName[src3(opcode)]
	case opcode&0xF8 == 0xA8:
		return "XRA " + regName[src3(opcode)]
	case opcode&0xF8 == 0xB0:
		return "ORA " + regName[src3(opcode)]
	case opcode&0xF8 == 0xB8:
		return "CMP " + regName[src3(opcode)]
	case opcode&0xC7 == 0x04:
		return "INR " + regName[dst3(opcode)]
	case opcode&0xC7 == 0x05:
		return "DCR " + regName[dst3(opcode)]
	case opcode == 0xC6:
		return fmt.Sprintf("ADI %02Xh", b2)
	case opcode == 0xCE:
		return fmt.Sprintf("ACI %02Xh", b2)
	case opcode == 0xD6:
		return fmt.Sprintf("SUI %02Xh", b2)
	case opcode == 0xDE:
		return fmt.Sprintf("SBI %02Xh", b2)
	case opcode&0xCF == 0x03:
		return "INX " + rpName[rpIndex(opcode)]
	case opcode&0xCF == 0x0B:
		return "DCX " + rpName[rpIndex(opcode)]
	case opcode&0xCF == 0x09:
		return "DAD " + rpName[rpIndex(opcode)]
	case opcode == 0xE6:
		return fmt.Sprintf("ANI %02Xh", b2)
	case opcode == 0xEE:
		return fmt.Sprintf("XRI %02Xh", b2)
	case opcode == 0xF6:
		return fmt.Sprintf("ORI %02Xh", b2)
	case opcode == 0xFE:
		return fmt.Sprintf("CPI %02Xh", b2)
	case opcode == 0x07:
		return "RLC"
	case opcode == 0x0F:
		return "RRC"
	case opcode == 0x17:
		return "RAL"
	case opcode == 0x1F:
		return "RAR"
	case opcode == 0xC3:
		return fmt.Sprintf("JMP %04Xh", imm16(b2, b3))
	case opcode == 0xCD:
		return fmt.Sprintf("CALL %04Xh", imm16(b2, b3))
	case opcode == 0xC9:
		return "RET"
	case opcode == 0xE9:
		return "PCHL"
	case opcode&0xC7 == 0xC2:
		return fmt.Sprintf("J%s %04Xh", condName[(opcode>>3)&0x7], imm16(b2, b3))
	case opcode&0xC7 == 0xC4:
		return fmt.Sprintf("C%s %04Xh", condName[(opcode>>3)&0x7], imm16(b2, b3))
	case opcode&0xC7 == 0xC0:
		return fmt.Sprintf("R%s", condName[(opcode>>3)&0x7])
	case opcode&0xC7 == 0xC7:
		return fmt.Sprintf("RST %d", (opcode>>3)&0x7)
	case opcode&0xCF == 0xC5:
		return "PUSH " + stackRPName[rpIndex(opcode)]
	case opcode&0xCF == 0xC1:
		return "POP " + stackRPName[rpIndex(opcode)]
	case opcode == 0xE3:
		return "XTHL"
	case opcode == 0xF9:
		return "SPHL"
	case opcode == 0xFB:
		return "EI"
	case opcode == 0xF3:
		return "DI"
	case opcode == 0xDB:
		return fmt.Sprintf("IN %02Xh", b2)
	case opcode == 0xD3:
		return fmt.Sprintf("OUT %02Xh", b2)
	case opcode == 0x27:
		return "DAA"
	case opcode == 0x2F:
		return "CMA"
	case opcode == 0x37:
		return "STC"
	case opcode == 0x3F:
		return "CMC"
	default:
		return "NOP"
	}
}

func formatDisassembly(addr uint16, opcode byte, name string, b2, b3 byte) string {
	_ = name // the execution table's generic Name is for Instruction bookkeeping only
	text, _ := Disassemble(unreadableMem{addr: addr, opcode: opcode, b2: b2, b3: b3}, addr)
	return fmt.Sprintf("%04X %s", addr, text)
}

// unreadableMem replays the three bytes already fetched for the current
// instruction, so formatDisassembly doesn't need to re-read live memory
// (which may have devices with read side effects) just to render a label.
type unreadableMem struct {
	addr   uint16
	opcode byte
	b2, b3 byte
}

func (m unreadableMem) Read(addr uint16) byte {
	switch addr {
	case m.addr:
		return m.opcode
	case m.addr + 1:
		return m.b2
	case m.addr + 2:
		return m.b3
	}
	return 0
}

func (m unreadableMem) Write(addr uint16, b byte) {}

// disassembleRange decodes every instruction boundary within [r.Start, r.End).
func disassembleRange(mem Memory, r Range) []line {
	var lines []line
	addr := r.Start
	for addr < r.End {
		text, size := Disassemble(mem, addr)
		lines = append(lines, line{addr, text})
		if size == 0 {
			break
		}
		addr += uint16(size)
	}
	return lines
}

type line struct {
	addr uint16
	text string
}

// Print renders a 13-line disassembly window around pc: the range
// containing pc is walked from its start to find instruction boundaries,
// then up to 6 lines before pc, the current line, and following lines are
// printed, truncated at the range end. PCs outside every traced range get
// 7 lines starting at pc instead.
func Print(ranges []Range, mem Memory, pc uint16) string {
	var buf strings.Builder

	r, ok := findRange(ranges, pc)
	if !ok {
		addr := pc
		for i := 0; i < 7; i++ {
			text, size := Disassemble(mem, addr)
			writeLine(&buf, addr, pc, text)
			if size == 0 {
				break
			}
			addr += uint16(size)
		}
		return buf.String()
	}

	lines := disassembleRange(mem, r)
	idx := 0
	for i, l := range lines {
		if l.addr == pc {
			idx = i
			break
		}
	}

	start := idx - 6
	if start < 0 {
		start = 0
	}
	end := start + 13
	if end > len(lines) {
		end = len(lines)
	}

	for i := start; i < end; i++ {
		writeLine(&buf, lines[i].addr, pc, lines[i].text)
	}
	return buf.String()
}

func writeLine(buf *strings.Builder, addr, pc uint16, text string) {
	marker := ":"
	if addr == pc {
		marker = ">>"
	}
	fmt.Fprintf(buf, "%04x %s %s\n", addr, marker, text)
}

// Dump renders every traced range in full, one instruction per line, for
// the CLI's static-disassembly mode.
func Dump(ranges []Range, mem Memory) string {
	var buf strings.Builder
	for _, r := range ranges {
		for _, l := range disassembleRange(mem, r) {
			fmt.Fprintf(&buf, "%04x : %s\n", l.addr, l.text)
		}
	}
	return buf.String()
}

func findRange(ranges []Range, addr uint16) (Range, bool) {
	for _, r := range ranges {
		if addr >= r.Start && addr < r.End {
			return r, true
		}
	}
	return Range{}, false
}
