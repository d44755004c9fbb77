package output

import (
	"bytes"
	"encoding/json"
	"io"
)

// PrintJSON writes data as indented JSON. Values under secret keys are
// masked; numbers keep their original precision.
func PrintJSON(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(maskJSON(tree))
}

func maskJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok && s != "" && isSecretKey(k) {
				t[k] = secretMask
				continue
			}
			t[k] = maskJSON(val)
		}
	case []any:
		for i, val := range t {
			t[i] = maskJSON(val)
		}
	}
	return v
}
