package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-coexp/internal/coexpression"
)

// YAMLWriter writes whole results as a stream of YAML documents.
type YAMLWriter struct {
	enc *yaml.Encoder
}

// NewYAMLWriter creates a YAML writer with two-space indentation.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLWriter{enc: enc}
}

// WriteResult writes one result document.
func (yw *YAMLWriter) WriteResult(res *coexpression.Result) error {
	if err := yw.enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// Close finishes the YAML stream.
func (yw *YAMLWriter) Close() error {
	return yw.enc.Close()
}
