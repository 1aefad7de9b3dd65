package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackName is used when nothing printable survives sanitizing
const fallbackName = "clip"

// SanitizeName turns an uploaded file name into a key-safe ASCII name,
// keeping the lower-cased extension.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))

	clean, err := toASCII(base)
	if err != nil || clean == "" {
		clean = fallbackName
	}
	ext, _ = toASCII(ext)
	if ext != "" {
		return clean + "." + ext
	}
	return clean
}

// Slug turns free text into a lower-case ASCII identifier, or "" when nothing survives
func Slug(text string) string {
	s, err := toASCII(text)
	if err != nil {
		return ""
	}
	return s
}

func toASCII(str string) (string, error) {
	// Decompose and drop the non-spacing marks left by accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	normalized, _, err := transform.String(t, str)
	if err != nil {
		return "", err
	}

	filtered := strings.Map(func(r rune) rune {
		switch {
		case r > unicode.MaxASCII:
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, normalized)

	filtered = strings.ToLower(strings.TrimSpace(filtered))
	return strings.Join(strings.Fields(filtered), "_"), nil
}

// ObjectKey builds "<kind>/<unix millis>-<sanitized name>"
func ObjectKey(kind, name string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s", kind, at.UnixMilli(), SanitizeName(name))
}

// DisplayName strips the kind prefix and upload timestamp from a key
func DisplayName(key string) string {
	_, rest, found := strings.Cut(key, "/")
	if !found {
		return key
	}
	if stamp, name, ok := strings.Cut(rest, "-"); ok && isDigits(stamp) && name != "" {
		return name
	}
	return rest
}

// KindOf returns the first path segment of key
func KindOf(key string) string {
	kind, _, _ := strings.Cut(key, "/")
	return kind
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
