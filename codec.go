package pct

import (
	"gopkg.in/yaml.v3"
)

// Codec turns a plain attribute value into a literal that pctrt.Decode reads
// back. Implementations must produce YAML (or JSON, which is valid YAML).
type Codec interface {
	Encode(v any) (string, error)
}

// YAMLCodec is the default Codec. Strings are always written double quoted:
// block styles chomp leading and trailing line breaks of template text.
type YAMLCodec struct{}

// Encode implements Codec
func (YAMLCodec) Encode(v any) (string, error) {
	// pctrt.Decode reads byte slices back from strings
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return "", err
	}
	quoteStrings(&node)

	data, err := yaml.Marshal(&node)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func quoteStrings(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		n.Style = yaml.DoubleQuotedStyle
	}
	for _, child := range n.Content {
		quoteStrings(child)
	}
}
