package codec

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// decodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit little-endian
// interleaved stereo at the source sample rate.
func decodeMP3(r io.ReadSeeker) (pcm.Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return pcm.Clip{}, fmt.Errorf("open mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return pcm.Clip{}, fmt.Errorf("read mp3 frames: %w", err)
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}

	return pcm.Clip{
		Samples: samples,
		Format: pcm.Format{
			SampleRate: dec.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
	}, nil
}
