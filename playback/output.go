package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerOutput plays the graph on the system audio device
type SpeakerOutput struct{}

var _ Output = (*SpeakerOutput)(nil)

// NewSpeakerOutput initializes the speaker with the given sample rate and buffer
func NewSpeakerOutput(sampleRate beep.SampleRate, bufferSize time.Duration) (*SpeakerOutput, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(bufferSize)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	return &SpeakerOutput{}, nil
}

func (o *SpeakerOutput) Play(s beep.Streamer) { speaker.Play(s) }

func (o *SpeakerOutput) Lock() { speaker.Lock() }

func (o *SpeakerOutput) Unlock() { speaker.Unlock() }

// Close stops playback and releases the device
func (o *SpeakerOutput) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}

// ManualOutput is an Output that only produces samples when Pull is called.
// It drives the graph in tests and headless runs.
type ManualOutput struct {
	mu       sync.Mutex
	streamer beep.Streamer
	closed   bool
}

var _ Output = (*ManualOutput)(nil)

// NewManualOutput returns an idle manual output
func NewManualOutput() *ManualOutput {
	return &ManualOutput{}
}

func (o *ManualOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	o.streamer = s
	o.mu.Unlock()
}

func (o *ManualOutput) Lock() { o.mu.Lock() }

func (o *ManualOutput) Unlock() { o.mu.Unlock() }

// Pull streams n samples from the graph; silence once closed or before Play
func (o *ManualOutput) Pull(n int) [][2]float64 {
	samples := make([][2]float64, n)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.streamer == nil {
		return samples
	}
	filled := 0
	for filled < n {
		m, ok := o.streamer.Stream(samples[filled:])
		filled += m
		if !ok || m == 0 {
			break
		}
	}
	return samples
}

// Closed reports whether Close was called
func (o *ManualOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *ManualOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("output already closed")
	}
	o.closed = true
	o.streamer = nil
	return nil
}
