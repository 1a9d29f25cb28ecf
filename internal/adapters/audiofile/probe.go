package audiofile

import (
	"os"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"

	"github.com/okian/stemai/internal/domain/model"
)

// Probe collects stream properties and tags for the file at path.
// Missing tags are not an error.
func Probe(path string, f Format) (model.Probe, error) {
	p := model.Probe{Format: f.Ext, MIME: f.MIME}

	props, err := taglib.ReadProperties(path)
	if err != nil {
		if !f.IsWAV() {
			return p, err
		}
		s, werr := ReadWAVFile(path)
		if werr != nil {
			return p, werr
		}
		p.SampleRate = s.SampleRate()
		p.Channels = s.Channels()
		p.Duration = float64(s.Frames()) / float64(s.SampleRate())
	} else {
		p.Duration = props.Length.Seconds()
		p.SampleRate = int(props.SampleRate)
		p.Channels = int(props.Channels)
		p.Bitrate = int(props.Bitrate)
	}

	file, err := os.Open(path) //nolint:gosec // path is built by the caller
	if err != nil {
		return p, err
	}
	defer func() { _ = file.Close() }()
	if md, err := tag.ReadFrom(file); err == nil {
		p.Title = md.Title()
		p.Artist = md.Artist()
		p.Album = md.Album()
	}
	return p, nil
}
