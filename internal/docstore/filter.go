package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
)

// filterByField keeps documents whose decoded top-level field equals value.
// JSON numbers decode as float64, so numeric values are compared through
// float64.
func filterByField(docs []Doc, field string, value any) ([]Doc, error) {
	want, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		var body map[string]any
		if err := json.Unmarshal(d.Data, &body); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", d.ID, err)
		}
		got, ok := body[field]
		if !ok {
			continue
		}
		if got == want {
			out = append(out, d)
		}
	}
	return out, nil
}

func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case string, bool, float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("unsupported find value type %T", value)
	}
}

func sortDocsByID(docs []Doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
