package loudness

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	// ErrNotFound reports a missing input file.
	ErrNotFound = errors.New("audio file not found")
	// ErrDecode reports an unreadable or unsupported audio file.
	ErrDecode = errors.New("audio decode failed")
	// ErrNoChannels reports a file whose header declares zero channels.
	ErrNoChannels = errors.New("audio has no channels")
)

// Buffer holds decoded PCM audio as interleaved samples centered at zero in
// their native integer scale. 8-bit files are shifted by 128 on decode and
// shifted back on encode.
type Buffer struct {
	sampleRate int
	channels   int
	bitDepth   int // 8, 16 or 32
	samples    []int32
}

// NewBuffer wraps interleaved zero-centered samples.
func NewBuffer(sampleRate, channels, bitDepth int, samples []int32) *Buffer {
	return &Buffer{sampleRate: sampleRate, channels: channels, bitDepth: bitDepth, samples: samples}
}

func (b *Buffer) SampleRate() int { return b.sampleRate }
func (b *Buffer) Channels() int   { return b.channels }
func (b *Buffer) BitDepth() int   { return b.bitDepth }

// Frames is the number of complete multi-channel sample frames.
func (b *Buffer) Frames() int {
	if b.channels == 0 {
		return 0
	}
	return len(b.samples) / b.channels
}

// fullScale is the positive full-scale amplitude for the bit depth.
func (b *Buffer) fullScale() float64 {
	switch b.bitDepth {
	case 8:
		return 1 << 7
	case 16:
		return 1 << 15
	default:
		return 1 << 31
	}
}

// PeakDBFS is the raw-sample peak relative to full scale, in dBFS. All-zero
// audio reads as -Inf.
func (b *Buffer) PeakDBFS() float64 {
	var peak int64
	for _, s := range b.samples {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(peak)/b.fullScale())
}

// Floats returns the interleaved samples scaled to [-1, 1) for measurement:
// 16-bit divides by 2^15, 32-bit by 2^31, and 8-bit maps its unsigned range
// onto [-1, 1).
func (b *Buffer) Floats() []float64 {
	scale := b.fullScale()
	out := make([]float64, len(b.samples))
	for i, s := range b.samples {
		out[i] = float64(s) / scale
	}
	return out
}

// ApplyGain returns a copy with db of gain applied in the integer domain,
// rounding each sample and saturating at the bit depth's range.
func (b *Buffer) ApplyGain(db float64) *Buffer {
	scale := math.Pow(10, db/20)
	lo, hi := b.sampleRange()
	out := &Buffer{
		sampleRate: b.sampleRate,
		channels:   b.channels,
		bitDepth:   b.bitDepth,
		samples:    make([]int32, len(b.samples)),
	}
	for i, s := range b.samples {
		v := math.Round(float64(s) * scale)
		if v > hi {
			v = hi
		} else if v < lo {
			v = lo
		}
		out.samples[i] = int32(v)
	}
	return out
}

func (b *Buffer) sampleRange() (lo, hi float64) {
	switch b.bitDepth {
	case 8:
		return math.MinInt8, math.MaxInt8
	case 16:
		return math.MinInt16, math.MaxInt16
	default:
		return math.MinInt32, math.MaxInt32
	}
}

// DownmixStereo folds buffers with more than two channels to stereo:
// even-indexed channels average into the left, odd-indexed into the right.
// Mono and stereo buffers are returned unchanged.
func (b *Buffer) DownmixStereo() *Buffer {
	if b.channels <= 2 {
		return b
	}
	frames := b.Frames()
	out := &Buffer{
		sampleRate: b.sampleRate,
		channels:   2,
		bitDepth:   b.bitDepth,
		samples:    make([]int32, frames*2),
	}
	nLeft := int64((b.channels + 1) / 2)
	nRight := int64(b.channels / 2)
	for f := 0; f < frames; f++ {
		var left, right int64
		for ch := 0; ch < b.channels; ch++ {
			s := int64(b.samples[f*b.channels+ch])
			if ch%2 == 0 {
				left += s
			} else {
				right += s
			}
		}
		out.samples[f*2] = int32(left / nLeft)
		out.samples[f*2+1] = int32(right / nRight)
	}
	return out
}

// DecodeFile reads a PCM WAV file into a Buffer.
func DecodeFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Decode(data)
}

// Decode parses PCM WAV bytes. A header that declares zero channels yields
// an empty zero-channel Buffer so callers can classify it separately from a
// malformed file.
func Decode(data []byte) (*Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrDecode)
	}

	var (
		fmtFound, dataFound bool
		format              uint16
		channels            int
		sampleRate          int
		bitDepth            int
		raw                 []byte
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrDecode, id)
		}
		chunk := data[off : off+size]
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too short", ErrDecode)
			}
			format = binary.LittleEndian.Uint16(chunk[0:2])
			channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			bitDepth = int(binary.LittleEndian.Uint16(chunk[14:16]))
			fmtFound = true
		case "data":
			raw = chunk
			dataFound = true
		}
		off += size
		if size%2 == 1 {
			off++ // chunks are word aligned
		}
	}

	if !fmtFound || !dataFound {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrDecode)
	}
	if format != 1 {
		return nil, fmt.Errorf("%w: unsupported format code %d, PCM only", ErrDecode, format)
	}
	switch bitDepth {
	case 8, 16, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrDecode, sampleRate)
	}

	buf := &Buffer{sampleRate: sampleRate, channels: channels, bitDepth: bitDepth}
	if channels == 0 {
		return buf, nil
	}

	bytesPer := bitDepth / 8
	frames := len(raw) / (bytesPer * channels)
	n := frames * channels
	buf.samples = make([]int32, n)
	switch bitDepth {
	case 8:
		for i := 0; i < n; i++ {
			buf.samples[i] = int32(raw[i]) - 128
		}
	case 16:
		for i := 0; i < n; i++ {
			buf.samples[i] = int32(int16(binary.LittleEndian.Uint16(raw[i*2:])))
		}
	case 32:
		for i := 0; i < n; i++ {
			buf.samples[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	}
	return buf, nil
}

// Encode writes the buffer as a canonical 44-byte-header PCM WAV.
func (b *Buffer) Encode(w io.Writer) error {
	bytesPer := b.bitDepth / 8
	dataLen := len(b.samples) * bytesPer

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(b.channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(b.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(b.sampleRate*b.channels*bytesPer))
	binary.LittleEndian.PutUint16(header[32:34], uint16(b.channels*bytesPer))
	binary.LittleEndian.PutUint16(header[34:36], uint16(b.bitDepth))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	out := make([]byte, dataLen)
	switch b.bitDepth {
	case 8:
		for i, s := range b.samples {
			out[i] = byte(s + 128)
		}
	case 16:
		for i, s := range b.samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
		}
	case 32:
		for i, s := range b.samples {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(s))
		}
	}
	_, err := w.Write(out)
	return err
}

// EncodeFile writes the buffer to path as a PCM WAV.
func (b *Buffer) EncodeFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
