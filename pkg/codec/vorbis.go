package codec

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// decodeVorbis decodes an Ogg Vorbis stream. Float samples are scaled and
// saturated into the 16-bit domain.
func decodeVorbis(r io.ReadSeeker) (pcm.Clip, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return pcm.Clip{}, fmt.Errorf("read vorbis: %w", err)
	}

	samples := make([]int16, len(data))
	for i, f := range data {
		samples[i] = pcm.ClampSample(int32(f * 32768))
	}

	return pcm.Clip{
		Samples: samples,
		Format: pcm.Format{
			SampleRate: format.SampleRate,
			Channels:   format.Channels,
			BitDepth:   16,
		},
	}, nil
}
