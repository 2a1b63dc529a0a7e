package fetcher

import (
	"fmt"

	crerr "github.com/cockroachdb/errors"
)

// ErrBadShape marks a response whose shape fails the minimal validator.
var ErrBadShape = crerr.New("unexpected response shape")

// ResultSetRows finds the named result set in a stats payload and zips its
// headers with each row. Stats endpoints return tabular data as parallel
// headers and rowSet arrays.
func ResultSetRows(payload any, name string) ([]map[string]any, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is %T, want object", ErrBadShape, payload)
	}
	sets, ok := root["resultSets"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing resultSets", ErrBadShape)
	}

	for _, raw := range sets {
		set, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if setName, _ := set["name"].(string); setName != name {
			continue
		}

		headers, ok := set["headers"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: result set %s has no headers", ErrBadShape, name)
		}
		rowSet, ok := set["rowSet"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: result set %s has no rowSet", ErrBadShape, name)
		}

		rows := make([]map[string]any, 0, len(rowSet))
		for _, rawRow := range rowSet {
			cells, ok := rawRow.([]any)
			if !ok {
				continue
			}
			row := make(map[string]any, len(headers))
			for i, h := range headers {
				key, _ := h.(string)
				if key == "" || i >= len(cells) {
					continue
				}
				row[key] = cells[i]
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%w: result set %s not found", ErrBadShape, name)
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asInt normalizes the numeric shapes a JSON decode can produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
