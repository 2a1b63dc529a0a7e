package fetcher

import "strconv"

// ID is a batch item identifier that remembers whether it originated as an
// integer (team ids, player ids) or a string (game ids, which carry leading
// zeros). Fetch callbacks receive the original representation via Value.
type ID struct {
	text    string
	numeric bool
}

func IntID(v int) ID {
	return ID{text: strconv.Itoa(v), numeric: true}
}

func StringID(v string) ID {
	return ID{text: v}
}

func (id ID) String() string { return id.text }

// Value returns the id in its original type: int for numeric ids, string
// otherwise.
func (id ID) Value() any {
	if id.numeric {
		n, err := strconv.Atoi(id.text)
		if err == nil {
			return n
		}
	}
	return id.text
}

func IntIDs(vs []int) []ID {
	out := make([]ID, len(vs))
	for i, v := range vs {
		out[i] = IntID(v)
	}
	return out
}

func StringIDs(vs []string) []ID {
	out := make([]ID, len(vs))
	for i, v := range vs {
		out[i] = StringID(v)
	}
	return out
}
