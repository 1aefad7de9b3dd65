package playback

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// MixBus sums the two channel gain stages and feeds the result through the master gain:
//
//	background gain ─┐
//	                 ├─ sum ── master gain ── output
//	voiceover gain ──┘
type MixBus struct {
	output     Output
	background *Channel
	voiceover  *Channel
	sum        *beep.Mixer
	master     *effects.Gain

	mu          sync.Mutex
	state       MixState
	masterLevel float64
}

func newMixBus(output Output, background, voiceover *Channel) *MixBus {
	sum := &beep.Mixer{}
	sum.Add(background.node(), voiceover.node())

	return &MixBus{
		output:      output,
		background:  background,
		voiceover:   voiceover,
		sum:         sum,
		master:      &effects.Gain{Streamer: sum},
		state:       MixState{MixRatio: 50, MasterVolume: 100},
		masterLevel: 1,
	}
}

// node is the bus output, played into the Output
func (b *MixBus) node() beep.Streamer { return b.master }

// MixGains converts a 0-100 mix ratio into background and voiceover channel gains.
// The two always sum to 1.
func MixGains(ratio int) (background, voiceover float64) {
	return float64(100-ratio) / 100, float64(ratio) / 100
}

// SetMixRatio rebalances the two channels without touching their sources.
// 0 is all background, 100 all voiceover.
func (b *MixBus) SetMixRatio(ratio int) error {
	if ratio < 0 || ratio > 100 {
		return fmt.Errorf("mix ratio %d: %w", ratio, ErrLevelRange)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bg, vo := MixGains(ratio)
	if err := b.background.SetGain(bg); err != nil {
		return err
	}
	if err := b.voiceover.SetGain(vo); err != nil {
		return err
	}
	b.state.MixRatio = ratio
	return nil
}

// SetMasterVolume sets the master gain stage to volume/100
func (b *MixBus) SetMasterVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("master volume %d: %w", volume, ErrLevelRange)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	level := float64(volume) / 100
	b.output.Lock()
	b.master.Gain = level - 1
	b.output.Unlock()

	b.masterLevel = level
	b.state.MasterVolume = volume
	return nil
}

// MasterGain returns the master gain in [0,1]
func (b *MixBus) MasterGain() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.masterLevel
}

// State returns the current mix ratio and master volume
func (b *MixBus) State() MixState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
