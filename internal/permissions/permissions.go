// Package permissions resolves a caller's capability set from its role and client type.
package permissions

import "sort"

// Capability is a single named permission token.
type Capability string

const (
	Read           Capability = "read"
	Write          Capability = "write"
	Delete         Capability = "delete"
	Publish        Capability = "publish"
	AIAssist       Capability = "ai-assist"
	LimitedWrite   Capability = "limited-write"
	BulkOperations Capability = "bulk-operations"
)

var roleCapabilities = map[string][]Capability{
	"admin":  {Read, Write, Delete, Publish, AIAssist},
	"editor": {Read, Write, AIAssist},
	"viewer": {Read},
}

var clientCapabilities = map[string][]Capability{
	"desktop": {Read, Write, Publish, AIAssist},
	"mobile":  {Read, LimitedWrite},
	"api":     {Read, Write, BulkOperations},
	"web":     {Read, Write},
}

// Set is an unordered collection of capabilities.
type Set map[Capability]struct{}

// Resolve returns the union of the role's base capabilities and the client type's
// capabilities. Unknown values contribute nothing.
func Resolve(role, clientType string) Set {
	set := make(Set)
	for _, c := range roleCapabilities[role] {
		set[c] = struct{}{}
	}
	for _, c := range clientCapabilities[clientType] {
		set[c] = struct{}{}
	}
	return set
}

func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// HasAll reports whether every capability in caps is present.
func (s Set) HasAll(caps ...Capability) bool {
	for _, c := range caps {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// List returns the capabilities sorted by name.
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// KnownRole reports whether role appears in the base role table.
func KnownRole(role string) bool {
	_, ok := roleCapabilities[role]
	return ok
}

// KnownClientType reports whether clientType appears in the client table.
func KnownClientType(clientType string) bool {
	_, ok := clientCapabilities[clientType]
	return ok
}
