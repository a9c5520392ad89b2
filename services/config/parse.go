//go:build !tinygo

package config

import (
	"bytes"
	_ "embed"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"proxnode-go/errcode"
)

//go:embed node.yaml
var embedded []byte

// Parse decodes a YAML document over Default(), rejecting unknown keys, then
// validates and normalizes the result.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "config.parse", Err: err}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	Normalize(cfg)
	return cfg, nil
}

// Embedded parses the node.yaml compiled into the binary.
func Embedded() (*Config, error) { return Parse(embedded) }
