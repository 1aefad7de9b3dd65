package voicegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"mixdeck/config"
	"mixdeck/storage"

	"github.com/Duckduckgot/gtts"
)

// ErrEmptyText is returned when the text has nothing to speak or name a file after
var ErrEmptyText = errors.New("text is empty after normalization")

// Uploader stores a generated clip in the library
type Uploader interface {
	Upload(ctx context.Context, kind, name, contentType string, body io.Reader, size int64) (string, error)
}

type synthesizer interface {
	CreateSpeechFile(text, fileName string) (string, error)
}

// Generator renders text to speech mp3 files and can publish them as voiceover clips
type Generator struct {
	speech   synthesizer
	uploader Uploader
	logger   *slog.Logger
}

// New creates a generator writing into cfg.Folder. uploader may be nil when only local files are wanted.
func New(cfg config.VoicegenConfig, uploader Uploader) *Generator {
	return &Generator{
		speech:   &gtts.Speech{Folder: cfg.Folder, Language: cfg.Language},
		uploader: uploader,
		logger:   slog.With("component", "voicegen"),
	}
}

// Generate renders text and returns the path of the mp3. Existing files are reused.
func (g *Generator) Generate(text string) (string, error) {
	name := storage.Slug(text)
	if name == "" {
		return "", ErrEmptyText
	}

	path, err := g.speech.CreateSpeechFile(text, name)
	if err != nil {
		return "", fmt.Errorf("failed to generate speech for %q: %w", name, err)
	}

	g.logger.Info("Generated voiceover", slog.String("file", path))
	return path, nil
}

// Publish renders text and uploads it to the voiceover pool, returning the object key
func (g *Generator) Publish(ctx context.Context, text string) (string, error) {
	if g.uploader == nil {
		return "", errors.New("no uploader configured")
	}

	path, err := g.Generate(text)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open generated file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat generated file: %w", err)
	}

	key, err := g.uploader.Upload(ctx, "voiceover", filepath.Base(path), "audio/mpeg", f, info.Size())
	if err != nil {
		return "", err
	}

	g.logger.Info("Published voiceover", slog.String("key", key))
	return key, nil
}
