// Command arcade8080 runs the 8080 emulator core against either a Space
// Invaders arcade ROM set or a CP/M-style instruction exerciser image.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/8080arcade/emulator/machine"
)

// Clock/frame constants per the reference hardware: a nominal 2MHz CPU, a
// 60Hz frame split into two half-frames, vblank (RST 2) at the midpoint
// and end-of-frame (RST 1) at the close.
const (
	cpuHz           = 2_000_000
	framesPerSecond = 60
	halfFrameCycles = cpuHz / (framesPerSecond * 2)
	vblankOpcode    = 0xD7 // RST 2
	frameEndOpcode  = 0xCF // RST 1
)

func main() {
	var romDir string
	var disassembly bool
	var debug bool

	root := &cobra.Command{
		Use:   "arcade8080",
		Short: "Intel 8080 arcade machine emulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArcade(romDir, disassembly, debug)
		},
	}
	root.Flags().StringVarP(&romDir, "rom-dir", "r", ".", "directory containing the four ROM blobs (invaders.h/g/f/e)")
	root.Flags().BoolVarP(&disassembly, "disassembly", "d", false, "print a static disassembly trace instead of running")
	root.Flags().BoolVar(&debug, "debug", false, "start in the interactive debug shell")

	testCmd := &cobra.Command{
		Use:   "test <image>",
		Short: "run a CP/M-style instruction exerciser image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestImage(args[0], debug)
		},
	}
	testCmd.Flags().BoolVar(&debug, "debug", false, "start in the interactive debug shell")

	root.AddCommand(testCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runArcade(romDir string, disassembly bool, debug bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("arcade8080: %v", r)
		}
	}()

	h, g, f, e, loadErr := loadArcadeROMs(romDir)
	if loadErr != nil {
		log.Fatalf("arcade8080: failed to load ROMs: %v", loadErr)
	}

	mem := machine.NewArcadeMemory(h, g, f, e)

	// Reset and the two RST vectors the board wires to vblank/frame-end.
	entries := []uint16{0x0000, 0x0008, 0x0010}

	if disassembly {
		ranges := machine.Trace(mem, entries)
		fmt.Print(machine.Dump(ranges, mem))
		return nil
	}

	io := machine.NewArcadeIO()
	cpu := machine.New(0x0000)
	sched := machine.NewScheduler(cpu, mem, io)

	var dbg *machine.Debugger
	if debug {
		dbg = machine.NewDebugger(sched, machine.Trace(mem, entries), os.Stdin, os.Stdout)
		dbg.Run()
	}

	runArcadeLoop(sched, dbg)
	return nil
}

// runArcadeLoop drives the scheduler at the cabinet's nominal frame rate:
// a half-frame of cycles, then vblank (RST 2), another half-frame, then
// frame-end (RST 1). A breakpoint hit re-enters the debug shell when one
// is attached.
func runArcadeLoop(sched *machine.Scheduler, dbg *machine.Debugger) {
	ticker := time.NewTicker(time.Second / framesPerSecond)
	defer ticker.Stop()

	for range ticker.C {
		if sched.Run(halfFrameCycles) && dbg != nil {
			dbg.Run()
		}
		sched.Interrupt(vblankOpcode)
		if sched.Run(halfFrameCycles) && dbg != nil {
			dbg.Run()
		}
		sched.Interrupt(frameEndOpcode)
	}
}

func loadArcadeROMs(dir string) (h, g, f, e []byte, err error) {
	names := map[string]*[]byte{
		"invaders.h": &h,
		"invaders.g": &g,
		"invaders.f": &f,
		"invaders.e": &e,
	}
	for name, dst := range names {
		data, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading %s: %w", name, readErr)
		}
		*dst = data
	}
	return h, g, f, e, nil
}

func runTestImage(path string, debug bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("arcade8080: %v", r)
		}
	}()

	image, readErr := os.ReadFile(path)
	if readErr != nil {
		log.Fatalf("arcade8080: failed to load test image: %v", readErr)
	}

	mem := machine.NewTestMemory()
	mem.LoadAt(0x0100, image)

	io := machine.NewTestIO()
	cpu := machine.New(0x0100)
	sched := machine.NewScheduler(cpu, mem, io)

	var dbg *machine.Debugger
	if debug {
		dbg = machine.NewDebugger(sched, machine.Trace(mem, []uint16{0x0100}), os.Stdin, os.Stdout)
		dbg.Run()
	}

	for !cpu.Halted {
		if sched.Run(100000) && dbg != nil {
			dbg.Run()
		}
	}
	return nil
}
