package demucs

import "github.com/okian/stemai/pkg/logger"

// Option applies a configuration option to the Separator.
type Option func(*Separator)

// WithBinary sets the demucs executable.
func WithBinary(bin string) Option {
	return func(s *Separator) {
		if bin != "" {
			s.bin = bin
		}
	}
}

// WithModel sets the pretrained model name passed as -n.
func WithModel(name string) Option {
	return func(s *Separator) {
		if name != "" {
			s.model = name
		}
	}
}

// WithStemMap translates model stem names to configured labels,
// e.g. other -> melody.
func WithStemMap(m map[string]string) Option {
	return func(s *Separator) {
		for k, v := range m {
			s.stemMap[k] = v
		}
	}
}

// WithWorkDir sets where scratch directories are created.
func WithWorkDir(dir string) Option {
	return func(s *Separator) {
		s.workDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Separator) {
		if l != nil {
			s.log = l
		}
	}
}
