// Package audiofile reads, writes and inspects the audio files that flow
// through the service.
package audiofile

import (
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// headerSize is how much of a file the type matchers need.
const headerSize = 261

// Format is a recognised upload container.
type Format struct {
	Ext  string `json:"ext"`
	MIME string `json:"mime"`
}

// IsWAV reports whether f needs no transcoding before decode.
func (f Format) IsWAV() bool { return f.Ext == "wav" }

var supported = map[string]bool{"mp3": true, "wav": true, "flac": true}

// Sniff identifies the container from the leading bytes of a file.
func Sniff(head []byte) (Format, error) {
	kind, err := filetype.Match(head)
	if err != nil {
		return Format{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if kind == filetype.Unknown || !supported[kind.Extension] {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, kind.Extension)
	}
	return Format{Ext: kind.Extension, MIME: kind.MIME.Value}, nil
}

// SniffReader reads just enough of r to identify it.
func SniffReader(r io.Reader) (Format, error) {
	head := make([]byte, headerSize)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Format{}, fmt.Errorf("read header: %w", err)
	}
	return Sniff(head[:n])
}

// SniffFile identifies the file at path.
func SniffFile(path string) (Format, error) {
	f, err := os.Open(path) //nolint:gosec // path is built by the caller
	if err != nil {
		return Format{}, err
	}
	defer func() { _ = f.Close() }()
	return SniffReader(f)
}
