package audio

import (
	"bytes"
	"encoding/binary"
)

// Float32ToPCM16 converts normalized float32 samples to little-endian 16-bit
// PCM, clamping to [-1, 1].
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}

		var value int16
		if sample < 0 {
			value = int16(sample * 0x8000)
		} else {
			value = int16(sample * 0x7fff)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(value))
	}
	return out
}

// PCM16ToFloat32 converts little-endian 16-bit PCM to normalized float32
// samples. A trailing odd byte is dropped.
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		value := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if value < 0 {
			out[i] = float32(value) / 0x8000
		} else {
			out[i] = float32(value) / 0x7fff
		}
	}
	return out
}

// EncodeWAV wraps raw mono 16-bit PCM in a RIFF/WAVE container so blob-based
// transcription services can consume it.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	buffer := bytes.Buffer{}
	buffer.Grow(44 + len(pcm))

	buffer.WriteString("RIFF")
	binary.Write(&buffer, binary.LittleEndian, uint32(36+len(pcm)))
	buffer.WriteString("WAVE")

	buffer.WriteString("fmt ")
	binary.Write(&buffer, binary.LittleEndian, uint32(16))
	binary.Write(&buffer, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buffer, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buffer, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buffer, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buffer, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buffer, binary.LittleEndian, uint16(16))           // bits per sample

	buffer.WriteString("data")
	binary.Write(&buffer, binary.LittleEndian, uint32(len(pcm)))
	buffer.Write(pcm)

	return buffer.Bytes()
}

// EncodeWAVFromFloat32 is the capture-to-upload path: normalized samples in,
// WAV blob out.
func EncodeWAVFromFloat32(samples []float32, sampleRate int) []byte {
	return EncodeWAV(Float32ToPCM16(samples), sampleRate)
}
