package cmd

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionOutput(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	out := buf.String()
	assert.Contains(t, out, "mixdeck dev (unknown, built unknown)")
	assert.Contains(t, out, "go: "+runtime.Version())
	assert.Contains(t, out, "beep: ")
}

func TestModuleVersionUnknown(t *testing.T) {
	assert.Equal(t, "unknown", moduleVersion("example.com/not/linked"))
}
