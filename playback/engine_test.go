package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mixdeck/assets/assetstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Output: NewManualOutput()})
	assert.Error(t, err)
	_, err = New(Options{Loader: assetstest.NewLoader()})
	assert.Error(t, err)
}

func TestEngineIsPlaying(t *testing.T) {
	h := newHarness(t)
	h.loader.Add("bg", clip(10000, 0.5))
	h.loader.Add("vo", clip(500, 0.5))

	playing, err := h.engine.IsPlaying()
	require.NoError(t, err)
	assert.False(t, playing)

	require.NoError(t, h.engine.PlayVoiceover(context.Background(), "vo", nil))
	playing, _ = h.engine.IsPlaying()
	assert.True(t, playing)

	h.output.Pull(1000)
	playing, _ = h.engine.IsPlaying()
	assert.False(t, playing, "voiceover ran past its end")

	require.NoError(t, h.engine.PlayBackground(context.Background(), "bg", true))
	bg, _ := h.engine.IsActive(Background)
	vo, _ := h.engine.IsActive(Voiceover)
	assert.True(t, bg)
	assert.False(t, vo)

	require.NoError(t, h.engine.StopAll())
	playing, _ = h.engine.IsPlaying()
	assert.False(t, playing)
}

func TestEngineChannelFailureIsolated(t *testing.T) {
	h := newHarness(t)
	h.loader.Add("bg", clip(10000, 0.5))
	require.NoError(t, h.engine.PlayBackground(context.Background(), "bg", true))

	var ended atomic.Int32
	err := h.engine.PlayVoiceover(context.Background(), "expired", func() { ended.Add(1) })
	require.Error(t, err)

	bg, _ := h.engine.IsActive(Background)
	assert.True(t, bg)

	h.clock.Advance(DefaultFailureGrace)
	require.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEngineDestroy(t *testing.T) {
	h := newHarness(t)
	h.loader.Add("bg", clip(10000, 0.5))
	require.NoError(t, h.engine.PlayBackground(context.Background(), "bg", true))

	require.NoError(t, h.engine.Destroy())
	assert.True(t, h.output.Closed())

	calls := map[string]func() error{
		"PlayBackground":  func() error { return h.engine.PlayBackground(context.Background(), "bg", true) },
		"PlayVoiceover":   func() error { return h.engine.PlayVoiceover(context.Background(), "bg", nil) },
		"StopAll":         h.engine.StopAll,
		"SetMixRatio":     func() error { return h.engine.SetMixRatio(10) },
		"SetMasterVolume": func() error { return h.engine.SetMasterVolume(10) },
		"IsPlaying":       func() error { _, err := h.engine.IsPlaying(); return err },
		"MixState":        func() error { _, err := h.engine.MixState(); return err },
		"Sequencer":       func() error { _, err := h.engine.Sequencer(Voiceover); return err },
		"Destroy":         h.engine.Destroy,
	}
	for name, call := range calls {
		err := call()
		var lifecycle *LifecycleError
		assert.True(t, errors.As(err, &lifecycle), name)
		assert.ErrorIs(t, err, ErrDestroyed, name)
	}
}

func TestEngineDestroyDuringLoad(t *testing.T) {
	h := newHarness(t)
	h.loader.Add("bg", clip(10000, 0.5))
	h.loader.Gate("bg")

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.engine.PlayBackground(context.Background(), "bg", true)
	}()
	<-h.loader.Started

	require.NoError(t, h.engine.Destroy())
	assert.ErrorIs(t, <-errCh, ErrDestroyed)
	assert.Equal(t, 0, h.engine.channels[Background].input.Len())
}

func TestEngineSequencers(t *testing.T) {
	h := newHarness(t)

	bg, err := h.engine.Sequencer(Background)
	require.NoError(t, err)
	assert.IsType(t, &LoopSequencer{}, bg)

	vo, err := h.engine.Sequencer(Voiceover)
	require.NoError(t, err)
	assert.IsType(t, &ShuffleSequencer{}, vo)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("Background")
	require.NoError(t, err)
	assert.Equal(t, Background, r)

	r, err = ParseRole("voiceover")
	require.NoError(t, err)
	assert.Equal(t, Voiceover, r)

	_, err = ParseRole("music")
	assert.Error(t, err)
}
