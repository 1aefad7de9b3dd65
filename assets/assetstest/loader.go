package assetstest

import (
	"context"
	"sync"

	"mixdeck/assets"

	"github.com/gopxl/beep/v2"
)

// Format is the buffer format Clip produces
var Format = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

// Tone returns a streamer of n samples at constant amplitude v
func Tone(n int, v float64) beep.Streamer {
	left := n
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left == 0 {
			return 0, false
		}
		k := min(len(samples), left)
		for i := 0; i < k; i++ {
			samples[i] = [2]float64{v, v}
		}
		left -= k
		return k, true
	})
}

// Clip returns a decoded clip of n samples at amplitude v
func Clip(n int, v float64) *assets.Audio {
	buf := beep.NewBuffer(Format)
	buf.Append(Tone(n, v))
	return assets.NewAudio(buf)
}

// Loader is an in-memory assets.Loader. Unknown URLs fail with a 404 FetchError.
// URLs registered with Gate block until the gate is closed or the load is cancelled.
type Loader struct {
	mu      sync.Mutex
	clips   map[string]*assets.Audio
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   []string
	Started chan string
}

var _ assets.Loader = (*Loader)(nil)

// NewLoader returns an empty loader
func NewLoader() *Loader {
	return &Loader{
		clips:   map[string]*assets.Audio{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		Started: make(chan string, 64),
	}
}

// Add serves a for url
func (l *Loader) Add(url string, a *assets.Audio) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clips[url] = a
}

// Fail makes url fail with err
func (l *Loader) Fail(url string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[url] = err
}

// Gate makes loads of url block until the returned channel is closed
func (l *Loader) Gate(url string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{})
	l.gates[url] = ch
	return ch
}

// Calls returns every URL loaded so far, in order
func (l *Loader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// CallCount returns how many times url was loaded
func (l *Loader) CallCount(url string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == url {
			n++
		}
	}
	return n
}

func (l *Loader) Load(ctx context.Context, url string) (*assets.Audio, error) {
	l.mu.Lock()
	l.calls = append(l.calls, url)
	gate := l.gates[url]
	audio, err := l.clips[url], l.errs[url]
	l.mu.Unlock()

	select {
	case l.Started <- url:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &assets.FetchError{URL: url, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, &assets.FetchError{URL: url, StatusCode: 404}
	}
	return audio, nil
}
