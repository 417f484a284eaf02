package permission

import (
	"sort"
	"strings"
)

// RootPermission grants every permission when present in a Set.
const RootPermission = "*:*:*"

// Set is a flat set of permission keys such as "monitor:online:list".
type Set map[string]struct{}

// NewSet builds a Set from keys, skipping blanks and trimming whitespace.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts key into the set.
func (s Set) Add(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s[key] = struct{}{}
}

// Contains reports exact membership of key.
func (s Set) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Allows reports whether the set grants key, either directly or through
// RootPermission. An empty key is always allowed.
func (s Set) Allows(key string) bool {
	if key == "" {
		return true
	}
	if s.Contains(RootPermission) {
		return true
	}
	return s.Contains(key)
}

// Union adds every key of other into s.
func (s Set) Union(other Set) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Sorted returns the keys in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s Set) Len() int {
	return len(s)
}
