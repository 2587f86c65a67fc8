package codec

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// decodeWAV decodes an integer-PCM WAV file. 8/24/32-bit sources are scaled
// to the engine's 16-bit sample domain; float WAV is rejected.
func decodeWAV(r io.ReadSeeker) (pcm.Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return pcm.Clip{}, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedLayout)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return pcm.Clip{}, fmt.Errorf("read PCM: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch bitDepth {
		case 16:
			samples[i] = int16(v)
		case 8:
			// 8-bit WAV is unsigned; recentre then widen.
			samples[i] = int16((v - 128) << 8)
		case 24:
			samples[i] = int16(v >> 8)
		case 32:
			samples[i] = int16(v >> 16)
		default:
			return pcm.Clip{}, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedLayout, bitDepth)
		}
	}

	return pcm.Clip{
		Samples: samples,
		Format: pcm.Format{
			SampleRate: buf.Format.SampleRate,
			Channels:   buf.Format.NumChannels,
			BitDepth:   16,
		},
	}, nil
}
