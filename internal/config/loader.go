package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STEMAI_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if STEMAI_CONFIG is set
//  3. env (prefix STEMAI_); a double underscore addresses a map key,
//     e.g. STEMAI_SIMULATED_GAINS__DRUMS=0.7
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// slices decode element-wise into existing backing arrays, so start empty
	cfg.StemLabels = nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if cfg.StemLabels == nil {
		cfg.StemLabels = base.StemLabels
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive", ErrInvalidConfig)
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("%w: max_upload_mb must be positive", ErrInvalidConfig)
	case c.SimulatedLatencyMinMS > c.SimulatedLatencyMaxMS:
		return fmt.Errorf("%w: simulated_latency_min_ms exceeds simulated_latency_max_ms", ErrInvalidConfig)
	}

	switch c.Separator {
	case SeparatorSimulated, SeparatorDemucs:
	default:
		return fmt.Errorf("%w: unknown separator %q", ErrInvalidConfig, c.Separator)
	}

	if len(c.StemLabels) == 0 {
		return fmt.Errorf("%w: stem_labels must not be empty", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.StemLabels))
	for _, label := range c.StemLabels {
		if label == "" || strings.ContainsAny(label, `/\.,`) || strings.IndexFunc(label, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: invalid stem label %q", ErrInvalidConfig, label)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate stem label %q", ErrInvalidConfig, label)
		}
		seen[label] = struct{}{}
	}

	// A mapping only renames a model output into a configured label that the
	// model does not already emit under its own name.
	stemMap := make(map[string]string, len(c.StemMap))
	for from, to := range c.StemMap {
		_, fromIsLabel := seen[from]
		_, toIsLabel := seen[to]
		if fromIsLabel || !toIsLabel {
			continue
		}
		stemMap[from] = to
	}
	c.StemMap = stemMap
	return nil
}

// listKeys are config keys whose env value is a comma separated list.
var listKeys = map[string]struct{}{
	"stem_labels": {},
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
