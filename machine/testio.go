package machine

import (
	"fmt"
	"log"
	"os"
)

// TestIO implements the CP/M BDOS-alike convention the classic 8080
// instruction-set exerciser ROMs use to report results: port 2 prints one
// ASCII character, port 0 prints a failure banner, port 1 prints a success
// banner, and port 3 prints a trailing newline and exits the process.
type TestIO struct {
	Out_ *os.File // overridable for tests; nil means os.Stdout
}

func NewTestIO() *TestIO {
	return &TestIO{}
}

func (t *TestIO) out() *os.File {
	if t.Out_ != nil {
		return t.Out_
	}
	return os.Stdout
}

func (t *TestIO) In(port byte) byte { return 0 }

func (t *TestIO) Out(port byte, b byte) {
	switch port {
	case 0:
		fmt.Fprint(t.out(), "CPU HAS FAILED    ERROR EXIT=")
	case 1:
		fmt.Fprint(t.out(), "CPU IS OPERATIONAL")
	case 2:
		fmt.Fprintf(t.out(), "%c", b)
	case 3:
		fmt.Fprintln(t.out())
		os.Exit(0)
	}
}

// cpmLowMemBoundary is the lowest address a well-behaved CP/M-hosted test
// image should write: below it sits the zero page and the BDOS entry stub
// the exerciser ROMs rely on.
const cpmLowMemBoundary = 0x05A4

// TestMemory is a flat 16KiB RAM used to host CP/M-style instruction
// exerciser images; it warns rather than faults on writes that stomp the
// reserved low-memory region, since those ROMs are known-good and a
// stray write there almost always means the emulator itself is wrong.
type TestMemory struct {
	mem [ArcadeRAMSize]byte
}

func NewTestMemory() *TestMemory {
	return &TestMemory{}
}

// Read returns 0 for addresses at or above 0x4000, which are unmapped.
func (m *TestMemory) Read(addr uint16) byte {
	if int(addr) >= len(m.mem) {
		return 0
	}
	return m.mem[addr]
}

// Write discards writes at or above 0x4000, which are unmapped.
func (m *TestMemory) Write(addr uint16, b byte) {
	if int(addr) >= len(m.mem) {
		return
	}
	if addr < cpmLowMemBoundary {
		log.Printf("machine: write to reserved low memory at %#04x (value %#02x)", addr, b)
	}
	m.mem[addr] = b
}

// LoadAt copies image into memory starting at addr, for a COM-style test
// binary that expects to run with PC set to the same address.
func (m *TestMemory) LoadAt(addr uint16, image []byte) {
	copy(m.mem[addr:], image)
}
