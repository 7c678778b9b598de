package audio_test

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/locknlabs/listen/pkg/audio"
)

// sinePCM generates `samples` 16-bit little-endian samples of a sine wave at
// the given frequency and amplitude (0.0–1.0 of full scale), sampled at 16 kHz.
func sinePCM(samples int, freq, amplitude float64) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestRMS_Silence_IsZero(t *testing.T) {
	if got := audio.RMS(make([]byte, 1920)); got != 0 {
		t.Fatalf("RMS of silence = %v, want 0", got)
	}
}

func TestRMS_Empty_IsZero(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Fatalf("RMS of empty buffer = %v, want 0", got)
	}
}

func TestRMS_SineWave_NearAmplitudeOverSqrt2(t *testing.T) {
	// A 1 kHz sine at amplitude 0.3 over 960 samples has RMS ≈ 0.3/√2 ≈ 0.212.
	pcm := sinePCM(960, 1000, 0.3)
	got := audio.RMS(pcm)
	if got < 0.15 || got > 0.25 {
		t.Fatalf("RMS = %v, want within [0.15, 0.25]", got)
	}
}

func TestToFloat32_FullScale(t *testing.T) {
	pcm := make([]byte, 4)
	minSample := int16(-32768)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(minSample))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(int16(16384)))

	samples := audio.ToFloat32(pcm)
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0] != -1.0 {
		t.Errorf("samples[0] = %v, want -1.0", samples[0])
	}
	if samples[1] != 0.5 {
		t.Errorf("samples[1] = %v, want 0.5", samples[1])
	}
}

func TestDuration_60msFrame(t *testing.T) {
	// 960 samples at 16 kHz = 60 ms.
	pcm := make([]byte, 1920)
	if got := audio.Duration(pcm, 16000); got != 60*time.Millisecond {
		t.Fatalf("Duration = %v, want 60ms", got)
	}
}

func TestDuration_InvalidSampleRate(t *testing.T) {
	if got := audio.Duration(make([]byte, 1920), 0); got != 0 {
		t.Fatalf("Duration with zero sample rate = %v, want 0", got)
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	pcm := make([]byte, 3200) // 100 ms of 16 kHz mono
	wav := audio.EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
}
