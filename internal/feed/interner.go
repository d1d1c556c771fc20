package feed

// Interner assigns dense integer identifiers to feed strings. Ids start at 1;
// 0 is reserved for "unknown".
type Interner struct {
	byString map[string]int
	byID     []string
}

func NewInterner() *Interner {
	return &Interner{byString: make(map[string]int), byID: []string{""}}
}

// ID returns the integer id of s, assigning the next id on first sight.
func (in *Interner) ID(s string) int {
	if id, ok := in.byString[s]; ok {
		return id
	}
	id := len(in.byID)
	in.byString[s] = id
	in.byID = append(in.byID, s)
	return id
}

// Lookup returns the id of s without assigning one.
func (in *Interner) Lookup(s string) (int, bool) {
	id, ok := in.byString[s]
	return id, ok
}

// String returns the original string of an id, or "" when unknown.
func (in *Interner) String(id int) string {
	if id <= 0 || id >= len(in.byID) {
		return ""
	}
	return in.byID[id]
}

// Len returns the number of interned strings.
func (in *Interner) Len() int {
	return len(in.byID) - 1
}
