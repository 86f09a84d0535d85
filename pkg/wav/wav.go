// Package wav reads and writes the mono PCM files a saved performance keeps
// its loop audio in.
package wav

import (
	"os"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/justyntemme/loopstation/pkg/dsp"
)

// ErrUnsupported is returned for files that are not PCM WAV or use a sample
// format this package does not decode.
var ErrUnsupported = errors.New("unsupported wav format")

const (
	writeScale = 32767.5
	bitDepth   = 16
	pcmFormat  = 1
)

// Sound is decoded mono audio.
type Sound struct {
	Samples    []float32
	SampleRate int
}

// Read decodes path into mono samples, averaging multi-channel files. At most
// maxSamples frames are returned when maxSamples is positive.
func Read(path string, maxSamples int) (Sound, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sound{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	d := gowav.NewDecoder(f)
	if !d.IsValidFile() {
		return Sound{}, errors.Wrapf(ErrUnsupported, "%s is not a PCM wav file", path)
	}
	depth := int(d.BitDepth)
	switch depth {
	case 16, 24, 32:
	default:
		return Sound{}, errors.Wrapf(ErrUnsupported, "%s: %d-bit samples", path, depth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Sound{}, errors.Wrapf(err, "decode %s", path)
	}
	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	if maxSamples > 0 && frames > maxSamples {
		frames = maxSamples
	}
	scale := 1 / float32(int(1)<<(depth-1))
	samples := make([]float32, frames)
	for i := range samples {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}
		samples[i] = float32(sum) * scale / float32(channels)
	}
	return Sound{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

// Write encodes samples as 16-bit mono PCM. Samples are clipped to [-1, 1].
func Write(path string, samples []float32, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(dsp.ClipSample(s, 1) * writeScale)
	}

	enc := gowav.NewEncoder(f, sampleRate, bitDepth, 1, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "finish %s", path)
	}
	return nil
}
