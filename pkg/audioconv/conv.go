// Package audioconv decodes audio files into the 16 kHz mono float PCM that
// the transcriber expects.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const SampleRate = 16000

type Options struct {
	MaxSamples int // 0 = unlimited
}

// clip is decoded interleaved audio at its native rate.
type clip struct {
	samples  []float32
	rate     int
	channels int
}

type decoder func(r io.ReadSeeker) (clip, error)

var byExt = map[string]decoder{
	".wav": decodeWAV,
	".mp3": decodeMP3,
	".ogg": decodeOgg,
	".oga": decodeOgg,
}

// DecodeFile decodes path; hint is an extension such as ".wav" used when the
// file name no longer carries one.
func DecodeFile(ctx context.Context, path, hint string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, hint, Options{})
}

func Decode(r io.ReadSeeker, hint string, opt Options) ([]float32, error) {
	dec, ok := byExt[strings.ToLower(hint)]
	if !ok {
		var err error
		if dec, err = sniff(r); err != nil {
			return nil, err
		}
	}

	c, err := dec(r)
	if err != nil {
		return nil, err
	}
	return c.mono16k(opt), nil
}

func sniff(r io.ReadSeeker) (decoder, error) {
	magic, _ := bufio.NewReader(r).Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(magic, []byte("RIFF")):
		return decodeWAV, nil
	case bytes.HasPrefix(magic, []byte("OggS")):
		return decodeOgg, nil
	case bytes.HasPrefix(magic, []byte("ID3")),
		len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return decodeMP3, nil
	}
	return nil, errors.New("unsupported audio format (supported: wav/mp3/ogg-vorbis/ogg-opus)")
}

func (c clip) mono16k(opt Options) []float32 {
	x := downmix(c.samples, c.channels)
	x = resample(x, c.rate, SampleRate)
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func decodeWAV(r io.ReadSeeker) (clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return clip{}, errors.New("invalid wav")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return clip{}, fmt.Errorf("read wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return clip{}, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}

	c := clip{samples: intsToFloat(buf.Data, depth), rate: 44100, channels: 1}
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			c.channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			c.rate = buf.Format.SampleRate
		}
	}
	return c, nil
}

func decodeMP3(r io.ReadSeeker) (clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return clip{}, err
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return clip{}, fmt.Errorf("read mp3: %w", err)
	}

	pcm := make([]int16, raw.Len()/2)
	if err := binary.Read(&raw, binary.LittleEndian, pcm); err != nil {
		return clip{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always produces 16-bit stereo.
	return clip{samples: int16sToFloat(pcm), rate: rate, channels: 2}, nil
}

func decodeOgg(r io.ReadSeeker) (clip, error) {
	c, verr := decodeVorbis(r)
	if verr == nil {
		return c, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return clip{}, err
	}
	c, oerr := decodeOpus(r)
	if oerr != nil {
		return clip{}, fmt.Errorf("ogg is neither vorbis (%v) nor opus (%w)", verr, oerr)
	}
	return c, nil
}

func decodeVorbis(r io.Reader) (clip, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return clip{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return clip{}, errors.New("invalid ogg/vorbis stream")
	}
	return clip{samples: pcm, rate: format.SampleRate, channels: format.Channels}, nil
}

func intsToFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(math.Max(-1, math.Min(1, float64(v)*scale)))
	}
	return out
}

func int16sToFloat(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range out {
		var sum float32
		for _, s := range in[i*channels : (i+1)*channels] {
			sum += s
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resample is linear interpolation; good enough for speech.
func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	ratio := float64(to) / float64(from)
	out := make([]float32, int(math.Ceil(float64(len(in))*ratio)))
	last := len(in) - 1
	for i := range out {
		pos := float64(i) / ratio
		i0 := int(pos)
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(pos - float64(i0))
		out[i] = in[i0]*(1-frac) + in[i0+1]*frac
	}
	return out
}
