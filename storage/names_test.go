package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"intro.mp3", "intro.mp3"},
		{"Mot de passe.WAV", "mot_de_passe.wav"},
		{"Élan   vital!!.ogg", "elan_vital.ogg"},
		{"../../etc/passwd", "passwd"},
		{`C:\music\jingle-01.flac`, "jingle-01.flac"},
		{"日本語.mp3", "clip.mp3"},
		{"noext", "noext"},
		{"", "clip"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1712345678901)
	assert.Equal(t, "background/1712345678901-bed.mp3", ObjectKey("background", "Bed.mp3", at))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "bed.mp3", DisplayName("background/1712345678901-bed.mp3"))
	assert.Equal(t, "my-file.mp3", DisplayName("voiceover/1-my-file.mp3"))
	assert.Equal(t, "loose.mp3", DisplayName("voiceover/loose.mp3"))
	assert.Equal(t, "flat", DisplayName("flat"))
	assert.Equal(t, "voiceover", KindOf("voiceover/x.mp3"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "bonjour_veuillez_entrez_votre_mot_de_passe", Slug("Bonjour, veuillez entrez votre mot de passe."))
	assert.Equal(t, "", Slug("!!!"))
}
