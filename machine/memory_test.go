package machine

import "testing"

func TestArcadeMemoryROMLoadAndMirroring(t *testing.T) {
	h := make([]byte, 0x800)
	g := make([]byte, 0x800)
	f := make([]byte, 0x800)
	e := make([]byte, 0x800)
	h[0] = 0xAA
	g[0] = 0xBB
	f[0] = 0xCC
	e[0] = 0xDD

	mem := NewArcadeMemory(h, g, f, e)

	tests := []struct {
		got  interface{}
		want interface{}
	}{
		{mem.Read(0x0000), byte(0xAA)},
		{mem.Read(0x0800), byte(0xBB)},
		{mem.Read(0x1000), byte(0xCC)},
		{mem.Read(0x1800), byte(0xDD)},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("got %v, want %v", test.got, test.want)
		}
	}

	mem.Write(0x2000, 0x42)
	if got := mem.Read(0x2000); got != 0x42 {
		t.Errorf("got %#02x, want %#02x", got, 0x42)
	}
	// 0x4000 aliases back to 0x2000.
	if got := mem.Read(0x4000); got != 0x42 {
		t.Errorf("got %#02x, want %#02x (mirrored)", got, 0x42)
	}

	mem.Write(0x0000, 0xFF) // ROM write must be discarded
	if got := mem.Read(0x0000); got != 0xAA {
		t.Errorf("ROM write not discarded: got %#02x, want %#02x", got, 0xAA)
	}
}

func TestRead16LittleEndian(t *testing.T) {
	mem := &flatMemory{}
	mem.Write(0x1000, 0x34)
	mem.Write(0x1001, 0x12)

	if got := Read16(mem, 0x1000); got != 0x1234 {
		t.Errorf("got %#04x, want %#04x", got, 0x1234)
	}
}

func TestFramebufferWindow(t *testing.T) {
	mem := NewArcadeMemory(nil, nil, nil, nil)
	mem.Write(0x2400, 0x7E)

	fb := mem.Framebuffer()
	if fb[0] != 0x7E {
		t.Errorf("got %#02x, want %#02x", fb[0], 0x7E)
	}
	if len(fb) != ArcadeRAMSize-0x2400 {
		t.Errorf("got framebuffer length %d, want %d", len(fb), ArcadeRAMSize-0x2400)
	}
}
