// Package parser decodes skin documents.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// YamlSkinParser implements SkinParser for YAML.
type YamlSkinParser struct{}

// NewYamlSkinParser creates a new YamlSkinParser.
func NewYamlSkinParser() ports.SkinParser {
	return &YamlSkinParser{}
}

// Parse unmarshals YAML bytes into a Skin struct.
func (p *YamlSkinParser) Parse(data []byte) (*entities.Skin, error) {
	var skin entities.Skin
	if err := yaml.Unmarshal(data, &skin); err != nil {
		return nil, err
	}
	return &skin, nil
}

// TomlSkinParser implements SkinParser for TOML.
type TomlSkinParser struct{}

// NewTomlSkinParser creates a new TomlSkinParser.
func NewTomlSkinParser() ports.SkinParser {
	return &TomlSkinParser{}
}

// Parse unmarshals TOML bytes into a Skin struct. Keys the Skin does not
// declare are rejected.
func (p *TomlSkinParser) Parse(data []byte) (*entities.Skin, error) {
	var skin entities.Skin
	md, err := toml.Decode(string(data), &skin)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown skin keys: %s", strings.Join(keys, ", "))
	}
	return &skin, nil
}

// ParserFor picks a parser from the file extension.
func ParserFor(path string) (ports.SkinParser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlSkinParser(), nil
	case ".toml":
		return NewTomlSkinParser(), nil
	default:
		return nil, fmt.Errorf("unsupported skin format %q", filepath.Ext(path))
	}
}
