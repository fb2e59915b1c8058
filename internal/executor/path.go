package executor

import (
	"strconv"
	"strings"
)

// Path is a response path: field response keys (string) and list indices (int).
type Path []any

// With returns a copy of p extended by elem.
func (p Path) With(elem any) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, elem)
}

// String renders p as in "users[0].name".
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// pathSet holds response subtrees by their rendered path.
type pathSet map[string]struct{}

func (s pathSet) add(p Path) {
	if len(p) > 0 {
		s[p.String()] = struct{}{}
	}
}

// covers reports whether p or one of its ancestors is in s.
func (s pathSet) covers(p Path) bool {
	if len(s) == 0 {
		return false
	}
	for i := 1; i <= len(p); i++ {
		if _, ok := s[p[:i].String()]; ok {
			return true
		}
	}
	return false
}
