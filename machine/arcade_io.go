package machine

// SoundSink receives the arcade board's discrete sound events. A host
// presenter implements this to drive an audio mixer; ArcadeIO itself never
// touches audio hardware.
type SoundSink interface {
	Play(i int)
	StartUFO()
	StopUFO()
}

// nullSoundSink discards every event, so ArcadeIO is usable without a host
// audio mixer wired up yet.
type nullSoundSink struct{}

func (nullSoundSink) Play(i int) {}
func (nullSoundSink) StartUFO()  {}
func (nullSoundSink) StopUFO()   {}

// Input bit layout for ports 1 and 2, canonical to the Space Invaders
// cabinet wiring.
const (
	inCoin    = 1 << 0
	inP2Start = 1 << 1
	inP1Start = 1 << 2
	inP1Shoot = 1 << 4
	inP1Left  = 1 << 5
	inP1Right = 1 << 6
	inP2Shoot = 1 << 4
	inP2Left  = 1 << 5
	inP2Right = 1 << 6
)

// ArcadeIO models the Space Invaders cabinet's I/O ports: three readable
// input ports (control bits and DIP switches), the hardware shift
// register used for sprite/background compositing, and sound-bit edge
// detection on ports 3 and 5.
type ArcadeIO struct {
	Port1, Port2 byte // live control-bit state, set by the host as buttons change
	DIP          byte // dip-switch bits folded into Port2's reads

	shiftReg    uint16
	shiftAmount byte

	prevPort3, prevPort5 byte
	Sound                SoundSink
}

// NewArcadeIO builds an ArcadeIO with its bit-3 "always 1" convention set
// on ports 1/2 (matches the reference cabinet's unused-input pull-ups) and
// a discarding sound sink until the host wires a real one.
func NewArcadeIO() *ArcadeIO {
	return &ArcadeIO{
		Port1: 1 << 3,
		Port2: 1 << 3,
		Sound: nullSoundSink{},
	}
}

func (a *ArcadeIO) In(port byte) byte {
	switch port {
	case 0:
		return 1 << 3 // unused on most ROM revisions; bit 3 tied high
	case 1:
		return a.Port1
	case 2:
		return a.Port2 | a.DIP
	case 3:
		if a.shiftAmount == 0 {
			return byte(a.shiftReg >> 8)
		}
		return byte(a.shiftReg >> (8 - a.shiftAmount))
	}
	return 0
}

func (a *ArcadeIO) Out(port byte, b byte) {
	switch port {
	case 2:
		a.shiftAmount = b & 0x7
	case 3:
		a.edgeTrigger(&a.prevPort3, b, port3Sounds, true)
	case 4:
		a.shiftReg = (a.shiftReg >> 8) | (uint16(b) << 8)
	case 5:
		a.edgeTrigger(&a.prevPort5, b, port5Sounds, false)
	}
}

// soundEvent names the effect a rising edge on a given bit triggers.
type soundEvent func(sink SoundSink)

var port3Sounds = [8]soundEvent{
	0: func(s SoundSink) { s.StartUFO() },
	1: func(s SoundSink) { s.Play(1) }, // shot
	2: func(s SoundSink) { s.Play(2) }, // player death
	3: func(s SoundSink) { s.Play(3) }, // invader hit
}

var port5Sounds = [8]soundEvent{
	0: func(s SoundSink) { s.Play(4) }, // fleet movement 1
	1: func(s SoundSink) { s.Play(5) }, // fleet movement 2
	2: func(s SoundSink) { s.Play(6) }, // fleet movement 3
	3: func(s SoundSink) { s.Play(7) }, // fleet movement 4
	4: func(s SoundSink) { s.Play(8) }, // UFO hit
}

// edgeTrigger dispatches sound events for bits that are newly set compared
// to the previous byte written to the same port; bit 0 of port 3 (UFO
// siren) additionally stops the sound on a falling edge.
func (a *ArcadeIO) edgeTrigger(prev *byte, b byte, table [8]soundEvent, isPort3 bool) {
	rising := b &^ *prev
	for i := 0; i < 8; i++ {
		if rising&(1<<uint(i)) != 0 && table[i] != nil {
			table[i](a.Sound)
		}
	}

	if isPort3 {
		falling := *prev &^ b
		if falling&(1<<0) != 0 {
			a.Sound.StopUFO()
		}
	}

	*prev = b
}
