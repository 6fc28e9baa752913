package manifest

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Query evaluates a JSONPath expression such as "$.*.css" against m.
func Query(m Manifest, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}

	root := make(map[string]any, len(m))
	for name, types := range m {
		entry := make(map[string]any, len(types))
		for fileType, url := range types {
			entry[fileType] = url
		}
		root[name] = entry
	}

	return x.Get(root), nil
}
