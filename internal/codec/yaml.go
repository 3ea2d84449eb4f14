package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlFile is the YAML document layout
type yamlFile struct {
	Devices []Document `yaml:"devices"`
}

// Parse imports documents from YAML
func (c *YAMLCodec) Parse(r io.Reader) ([]Document, error) {
	var yf yamlFile
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&yf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return yf.Devices, nil
}

// Export exports documents to YAML
func (c *YAMLCodec) Export(docs []Document, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(yamlFile{Devices: docs}); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
