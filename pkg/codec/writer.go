package codec

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// WAVWriter streams PCM frames into a 16-bit WAV file. It is the recording
// counterpart of [Decode], used to capture a broadcast's program output.
//
// Not safe for concurrent use; call WriteFrame from a single goroutine and
// Close after the last frame. Close finalizes the RIFF header, so a writer
// that is never closed produces an unreadable file.
type WAVWriter struct {
	enc *wav.Encoder
	buf *audio.IntBuffer
}

// NewWAVWriter creates a writer for the given session format. ws must support
// seeking — the WAV header is patched with the final sizes on Close.
func NewWAVWriter(ws io.WriteSeeker, format pcm.Format) *WAVWriter {
	return &WAVWriter{
		enc: wav.NewEncoder(ws, format.SampleRate, 16, format.Channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: 16,
		},
	}
}

// WriteFrame appends one frame of interleaved samples.
func (w *WAVWriter) WriteFrame(f pcm.Frame) error {
	if cap(w.buf.Data) < len(f) {
		w.buf.Data = make([]int, len(f))
	}
	w.buf.Data = w.buf.Data[:len(f)]
	for i, s := range f {
		w.buf.Data[i] = int(s)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("codec: write wav frame: %w", err)
	}
	return nil
}

// Close finalizes the WAV header. The underlying writer is not closed.
func (w *WAVWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("codec: finalize wav: %w", err)
	}
	return nil
}
