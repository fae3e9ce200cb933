package loudness

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// buildWAV assembles a WAV byte stream with arbitrary header fields so
// decoder edge cases can be exercised directly.
func buildWAV(format, channels, depth uint16, rate uint32, data []byte) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, format)
	binary.Write(&b, binary.LittleEndian, channels)
	binary.Write(&b, binary.LittleEndian, rate)
	binary.Write(&b, binary.LittleEndian, rate*uint32(channels)*uint32(depth/8))
	binary.Write(&b, binary.LittleEndian, uint16(channels*depth/8))
	binary.Write(&b, binary.LittleEndian, depth)
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []int32{0, 1000, -1000, 32767, -32768, 123}
	orig := NewBuffer(44100, 2, 16, samples)

	var buf bytes.Buffer
	if err := orig.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.SampleRate() != 44100 || got.Channels() != 2 || got.BitDepth() != 16 {
		t.Fatalf("header = %d Hz, %d ch, %d bit", got.SampleRate(), got.Channels(), got.BitDepth())
	}
	if len(got.samples) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got.samples), len(samples))
	}
	for i := range samples {
		if got.samples[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, got.samples[i], samples[i])
		}
	}
}

func TestEightBitRoundTrip(t *testing.T) {
	orig := NewBuffer(8000, 1, 8, []int32{-128, -1, 0, 64, 127})

	var buf bytes.Buffer
	if err := orig.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// 8-bit WAV stores unsigned bytes offset by 128.
	raw := buf.Bytes()[44:]
	wantRaw := []byte{0, 127, 128, 192, 255}
	if !bytes.Equal(raw, wantRaw) {
		t.Fatalf("encoded bytes = %v, want %v", raw, wantRaw)
	}

	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, want := range orig.samples {
		if got.samples[i] != want {
			t.Errorf("sample %d = %d, want %d", i, got.samples[i], want)
		}
	}
}

func TestFloatsScaling(t *testing.T) {
	cases := []struct {
		name   string
		depth  int
		sample int32
		want   float64
	}{
		{"u8 min", 8, -128, -1},
		{"u8 half", 8, 64, 0.5},
		{"s16 half", 16, 16384, 0.5},
		{"s16 min", 16, -32768, -1},
		{"s32 half", 32, 1 << 30, 0.5},
		{"s32 min", 32, math.MinInt32, -1},
	}
	for _, tc := range cases {
		b := NewBuffer(44100, 1, tc.depth, []int32{tc.sample})
		got := b.Floats()[0]
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s: Floats()[0] = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPeakDBFS(t *testing.T) {
	half := NewBuffer(44100, 1, 16, []int32{100, -16384, 3})
	if got := half.PeakDBFS(); math.Abs(got-(-6.0206)) > 0.001 {
		t.Errorf("half-scale peak = %v, want about -6.02", got)
	}

	full := NewBuffer(44100, 1, 8, []int32{-128})
	if got := full.PeakDBFS(); math.Abs(got) > 1e-9 {
		t.Errorf("full-scale peak = %v, want 0", got)
	}

	silent := NewBuffer(44100, 1, 16, make([]int32, 128))
	if got := silent.PeakDBFS(); !math.IsInf(got, -1) {
		t.Errorf("silent peak = %v, want -Inf", got)
	}
}

func TestApplyGainSaturates(t *testing.T) {
	b := NewBuffer(44100, 1, 16, []int32{30000, -30000, 100})
	got := b.ApplyGain(6)
	if got.samples[0] != 32767 {
		t.Errorf("positive clip = %d, want 32767", got.samples[0])
	}
	if got.samples[1] != -32768 {
		t.Errorf("negative clip = %d, want -32768", got.samples[1])
	}
	want := int32(math.Round(100 * math.Pow(10, 6.0/20)))
	if got.samples[2] != want {
		t.Errorf("scaled sample = %d, want %d", got.samples[2], want)
	}
	if b.samples[0] != 30000 {
		t.Error("ApplyGain mutated the source buffer")
	}
}

func TestApplyGainIdentity(t *testing.T) {
	b := NewBuffer(44100, 1, 16, []int32{-5, 0, 12345})
	got := b.ApplyGain(0)
	for i := range b.samples {
		if got.samples[i] != b.samples[i] {
			t.Errorf("sample %d changed under 0 dB gain: %d -> %d", i, b.samples[i], got.samples[i])
		}
	}
}

func TestDownmixStereo(t *testing.T) {
	quad := NewBuffer(48000, 4, 16, []int32{
		100, 200, 300, 400,
		-100, -200, -300, -400,
	})
	got := quad.DownmixStereo()
	if got.Channels() != 2 || got.Frames() != 2 {
		t.Fatalf("downmix = %d ch, %d frames", got.Channels(), got.Frames())
	}
	want := []int32{200, 300, -200, -300}
	for i := range want {
		if got.samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got.samples[i], want[i])
		}
	}

	stereo := NewBuffer(48000, 2, 16, []int32{1, 2})
	if stereo.DownmixStereo() != stereo {
		t.Error("stereo buffer should pass through unchanged")
	}
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	wav := buildWAV(1, 1, 16, 44100, []byte{0x10, 0x00})
	list := append([]byte("LIST"), 0x03, 0x00, 0x00, 0x00, 'a', 'b', 'c', 0x00)
	withExtra := append(append([]byte{}, wav[:36]...), list...)
	withExtra = append(withExtra, wav[36:]...)
	binary.LittleEndian.PutUint32(withExtra[4:8], uint32(len(withExtra)-8))

	got, err := Decode(withExtra)
	if err != nil {
		t.Fatalf("Decode with LIST chunk: %v", err)
	}
	if got.Frames() != 1 || got.samples[0] != 0x10 {
		t.Errorf("decoded %d frames, first sample %d", got.Frames(), got.samples[0])
	}
}

func TestDecodeZeroChannels(t *testing.T) {
	got, err := Decode(buildWAV(1, 0, 16, 44100, nil))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Channels() != 0 || got.Frames() != 0 {
		t.Errorf("zero-channel file decoded as %d ch, %d frames", got.Channels(), got.Frames())
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"not a wav", []byte("this is not audio at all")},
		{"float format", buildWAV(3, 1, 32, 44100, make([]byte, 8))},
		{"24 bit", buildWAV(1, 1, 24, 44100, make([]byte, 6))},
		{"zero rate", buildWAV(1, 1, 16, 0, make([]byte, 4))},
		{"truncated chunk", buildWAV(1, 1, 16, 44100, make([]byte, 4))[:40]},
	}
	for _, tc := range cases {
		_, err := Decode(tc.data)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: err = %v, want ErrDecode", tc.name, err)
		}
	}
}
