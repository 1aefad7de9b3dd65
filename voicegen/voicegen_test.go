package voicegen

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mixdeck/config"
	"mixdeck/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileSpeech writes the text itself as the "audio" so tests stay offline
type fileSpeech struct {
	folder string
	names  []string
	err    error
}

func (s *fileSpeech) CreateSpeechFile(text, fileName string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.names = append(s.names, fileName)
	path := filepath.Join(s.folder, fileName+".mp3")
	return path, os.WriteFile(path, []byte(text), 0o644)
}

type recordingUploader struct {
	kind, name, contentType string
	body                    []byte
	size                    int64
}

func (u *recordingUploader) Upload(ctx context.Context, kind, name, contentType string, body io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.kind, u.name, u.contentType, u.body, u.size = kind, name, contentType, data, size
	return kind + "/1-" + name, nil
}

func newTestGenerator(t *testing.T, up Uploader) (*Generator, *fileSpeech) {
	t.Helper()
	speech := &fileSpeech{folder: t.TempDir()}
	return &Generator{speech: speech, uploader: up, logger: logger.Discard()}, speech
}

func TestGenerateNamesFileFromText(t *testing.T) {
	g, speech := newTestGenerator(t, nil)

	path, err := g.Generate("Mot de passe correct.")
	require.NoError(t, err)
	assert.Equal(t, "mot_de_passe_correct.mp3", filepath.Base(path))
	assert.Equal(t, []string{"mot_de_passe_correct"}, speech.names)
}

func TestGenerateEmptyText(t *testing.T) {
	g, _ := newTestGenerator(t, nil)

	_, err := g.Generate("?!")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestGenerateError(t *testing.T) {
	g, speech := newTestGenerator(t, nil)
	speech.err = errors.New("429 too many requests")

	_, err := g.Generate("hello")
	assert.ErrorContains(t, err, "429")
}

func TestPublish(t *testing.T) {
	up := &recordingUploader{}
	g, _ := newTestGenerator(t, up)

	key, err := g.Publish(context.Background(), "Welcome back")
	require.NoError(t, err)
	assert.Equal(t, "voiceover/1-welcome_back.mp3", key)
	assert.Equal(t, "voiceover", up.kind)
	assert.Equal(t, "audio/mpeg", up.contentType)
	assert.Equal(t, []byte("Welcome back"), up.body)
	assert.Equal(t, int64(len("Welcome back")), up.size)
}

func TestPublishWithoutUploader(t *testing.T) {
	g, _ := newTestGenerator(t, nil)

	_, err := g.Publish(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNewUsesConfiguredFolder(t *testing.T) {
	g := New(config.VoicegenConfig{Folder: "out", Language: "fr"}, nil)
	assert.NotNil(t, g.speech)
}
