// Package assetstest builds small audio payloads for tests.
package assetstest

import (
	"bytes"
	"encoding/binary"
)

// WAV returns a mono 16-bit PCM RIFF/WAVE payload with frames samples of a square wave.
func WAV(sampleRate, frames int) []byte {
	dataLen := frames * 2

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))           // chunk size
	binary.Write(&b, binary.LittleEndian, uint16(1))            // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1))            // channels
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))   // sample rate
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&b, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&b, binary.LittleEndian, uint16(16))           // bits per sample

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	for i := 0; i < frames; i++ {
		v := int16(8000)
		if (i/50)%2 == 1 {
			v = -8000
		}
		binary.Write(&b, binary.LittleEndian, v)
	}
	return b.Bytes()
}
