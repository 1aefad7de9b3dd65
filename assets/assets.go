package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Audio holds a fully decoded clip, resampled to the engine sample rate
type Audio struct {
	Buffer *beep.Buffer
	// Source is the format the payload was encoded in
	Source beep.Format
}

// NewAudio wraps an already decoded buffer
func NewAudio(buf *beep.Buffer) *Audio {
	return &Audio{Buffer: buf, Source: buf.Format()}
}

// Len returns the clip length in samples at the buffer rate
func (a *Audio) Len() int {
	return a.Buffer.Len()
}

// Duration returns the clip length
func (a *Audio) Duration() time.Duration {
	return a.Buffer.Format().SampleRate.D(a.Buffer.Len())
}

// Streamer returns a fresh streamer positioned at the start of the clip
func (a *Audio) Streamer() beep.StreamSeeker {
	return a.Buffer.Streamer(0, a.Buffer.Len())
}

// Loader turns a URL into a playable in-memory clip
type Loader interface {
	Load(ctx context.Context, url string) (*Audio, error)
}

// HTTPLoader fetches clips over HTTP and decodes them with beep.
// Every call fetches and decodes again; nothing is cached.
type HTTPLoader struct {
	client     *http.Client
	sampleRate beep.SampleRate
	logger     *slog.Logger
}

var _ Loader = (*HTTPLoader)(nil)

// NewHTTPLoader creates a loader that resamples everything to sampleRate
func NewHTTPLoader(client *http.Client, sampleRate beep.SampleRate) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPLoader{
		client:     client,
		sampleRate: sampleRate,
		logger:     slog.With("component", "loader"),
	}
}

// Load performs one GET against rawURL and decodes the body
func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (*Audio, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: redact(rawURL), Err: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: redact(rawURL), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: redact(rawURL), StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: redact(rawURL), Err: fmt.Errorf("read body: %w", err)}
	}

	audio, err := Decode(data, resp.Header.Get("Content-Type"), urlPath(rawURL), l.sampleRate)
	if err != nil {
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			decErr.URL = redact(rawURL)
		}
		return nil, err
	}

	l.logger.Debug("Loaded clip",
		slog.String("url", redact(rawURL)),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", audio.Duration()))

	return audio, nil
}

// Decode decodes an encoded payload into a buffer at sampleRate.
// The container is picked from magic bytes, then contentType, then the file extension of name.
func Decode(data []byte, contentType, name string, sampleRate beep.SampleRate) (*Audio, error) {
	format := DetectFormat(data, contentType, name)
	if format == "" {
		return nil, &DecodeError{Err: errors.New("unrecognized audio format")}
	}

	var (
		streamer beep.StreamSeekCloser
		srcFmt   beep.Format
		err      error
	)
	switch format {
	case "mp3":
		streamer, srcFmt, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case "wav":
		streamer, srcFmt, err = wav.Decode(bytes.NewReader(data))
	case "flac":
		streamer, srcFmt, err = flac.Decode(bytes.NewReader(data))
	case "vorbis":
		streamer, srcFmt, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if srcFmt.SampleRate != sampleRate {
		src = beep.Resample(4, srcFmt.SampleRate, sampleRate, streamer)
	}

	buffer := beep.NewBuffer(beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2})
	buffer.Append(src)
	if err := streamer.Err(); err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	if buffer.Len() == 0 {
		return nil, &DecodeError{Format: format, Err: errors.New("no samples decoded")}
	}

	return &Audio{Buffer: buffer, Source: srcFmt}, nil
}

// DetectFormat returns one of mp3, wav, flac, vorbis or "" when unknown
func DetectFormat(data []byte, contentType, name string) string {
	switch {
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "vorbis"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync without an ID3 tag
		return "mp3"
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg-3":
			return "mp3"
		case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
			return "wav"
		case "audio/flac", "audio/x-flac":
			return "flac"
		case "audio/ogg", "audio/vorbis", "application/ogg":
			return "vorbis"
		}
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "mp3"
	case ".wav", ".wave":
		return "wav"
	case ".flac":
		return "flac"
	case ".ogg", ".oga":
		return "vorbis"
	}
	return ""
}

// redact drops the query string so presigned credentials never reach logs
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}
