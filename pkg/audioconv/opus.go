//go:build opus

package audioconv

import (
	"io"

	popus "github.com/pekim/opus"
)

const opusRate = 48000

func decodeOpus(r io.ReadSeeker) (clip, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return clip{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		out []float32
		buf = make([]int16, opusRate*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			out = append(out, int16sToFloat(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return clip{}, err
		}
	}
	return clip{samples: out, rate: opusRate, channels: ch}, nil
}
