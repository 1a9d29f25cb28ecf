package audiofile

import "errors"

// Sentinel kinds for audio file errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrDecode            = errors.New("decode audio failed")
	ErrEncode            = errors.New("encode audio failed")
)
