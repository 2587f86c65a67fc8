// Package codec decodes soundboard clip files into PCM.
//
// Supported containers are WAV (integer PCM), MP3, and Ogg Vorbis, detected
// by magic bytes rather than file extension. Decoders return a [pcm.Clip] in
// the file's native format; callers normalize to the session format with
// [pcm.Normalize]. Any unsupported or corrupt input fails with a
// [*DecodeError] and leaves no partial state behind.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

var (
	// ErrUnsupportedContainer indicates the input matched no known container
	// signature.
	ErrUnsupportedContainer = errors.New("unsupported container")

	// ErrUnsupportedLayout indicates a recognised container with a sample
	// layout the engine cannot use (e.g. float WAV, more than two channels).
	ErrUnsupportedLayout = errors.New("unsupported sample layout")
)

// DecodeError wraps any failure to turn a clip file into PCM. It is local to
// a single load call; no other engine state is affected.
type DecodeError struct {
	// Name identifies the input for error messages (usually the file path).
	Name string

	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode sniffs the container signature of r and decodes it with the matching
// decoder. The name is used for error reporting only.
func Decode(name string, r io.ReadSeeker) (pcm.Clip, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return pcm.Clip{}, &DecodeError{Name: name, Err: fmt.Errorf("read signature: %w", err)}
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return pcm.Clip{}, &DecodeError{Name: name, Err: err}
	}

	var (
		clip pcm.Clip
		err  error
	)
	switch {
	case string(magic[:]) == "RIFF":
		clip, err = decodeWAV(r)
	case string(magic[:]) == "OggS":
		clip, err = decodeVorbis(r)
	case string(magic[:3]) == "ID3" || (magic[0] == 0xFF && magic[1]&0xE0 == 0xE0):
		clip, err = decodeMP3(r)
	default:
		err = ErrUnsupportedContainer
	}
	if err != nil {
		return pcm.Clip{}, &DecodeError{Name: name, Err: err}
	}
	if clip.Format.Channels < 1 || clip.Format.Channels > 2 {
		return pcm.Clip{}, &DecodeError{
			Name: name,
			Err:  fmt.Errorf("%w: %d channels", ErrUnsupportedLayout, clip.Format.Channels),
		}
	}
	return clip, nil
}
