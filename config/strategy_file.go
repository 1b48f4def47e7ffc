package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadStrategyFile decodes a YAML strategy file over dst.
// Fields absent from the file keep the values already present in dst,
// so callers pass a struct pre-filled with defaults.
func LoadStrategyFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategy file: %w", err)
	}
	return DecodeStrategy(data, dst)
}

// DecodeStrategy decodes YAML strategy bytes over dst, rejecting unknown keys.
func DecodeStrategy(data []byte, dst any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode strategy yaml: %w", err)
	}
	return nil
}
