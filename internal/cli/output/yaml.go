package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// PrintYAML writes data as YAML with two-space indentation. Values under
// secret keys are masked.
func PrintYAML(w io.Writer, data any) error {
	var doc yaml.Node
	if err := doc.Encode(data); err != nil {
		return err
	}
	maskYAML(&doc)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		_ = encoder.Close()
		return err
	}
	return encoder.Close()
}

func maskYAML(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if isSecretKey(key.Value) && val.Kind == yaml.ScalarNode && val.Value != "" {
				val.Value, val.Tag, val.Style = secretMask, "!!str", 0
				continue
			}
			maskYAML(val)
		}
		return
	}
	for _, c := range n.Content {
		maskYAML(c)
	}
}
