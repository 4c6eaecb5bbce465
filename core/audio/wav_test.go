package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFloat32ToPCM16ClampsAndScales(t *testing.T) {
	pcm := Float32ToPCM16([]float32{0, 1, -1, 2, -2, 0.5})

	expected := []int16{0, 0x7fff, -0x8000, 0x7fff, -0x8000, 0x3fff}
	if len(pcm) != len(expected)*2 {
		t.Fatalf("expected %d bytes, got %d", len(expected)*2, len(pcm))
	}

	for i, want := range expected {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if got != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 320)
	wav := EncodeWAV(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatalf("unexpected container magic: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[4:]); got != uint32(36+len(pcm)) {
		t.Fatalf("expected riff size %d, got %d", 36+len(pcm), got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:]); got != 1 {
		t.Fatalf("expected mono, got %d channels", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != uint32(len(pcm)) {
		t.Fatalf("expected data size %d, got %d", len(pcm), got)
	}
}
