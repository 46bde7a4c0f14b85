package region

import (
	"fmt"
	"strings"
)

// Identity is an opaque token for a call site's compiled representation.
// It is only meaningful while the call site is alive; hosts must Retire it
// before the token can be reused.
type Identity uintptr

type keyKind uint8

const (
	keyIdentity keyKind = iota + 1
	keyName
)

// Key addresses a region either by call-site identity or by
// "<scope>:<function>" name. The zero Key is invalid.
type Key struct {
	kind  keyKind
	id    Identity
	scope string
	name  string
}

// IdentityKey builds a key for the fast identity-keyed map.
func IdentityKey(id Identity) Key {
	return Key{kind: keyIdentity, id: id}
}

// NameKey builds a key for the name-keyed map.
func NameKey(scope, function string) Key {
	return Key{kind: keyName, scope: scope, name: scope + ":" + function}
}

// IsIdentity reports whether k is an identity key.
func (k Key) IsIdentity() bool {
	return k.kind == keyIdentity
}

// Identity returns the token of an identity key, zero otherwise.
func (k Key) Identity() Identity {
	return k.id
}

// Name returns the "<scope>:<function>" name of a name key, empty otherwise.
func (k Key) Name() string {
	return k.name
}

func (k Key) String() string {
	switch k.kind {
	case keyIdentity:
		return fmt.Sprintf("id:0x%x", uintptr(k.id))
	case keyName:
		return k.name
	default:
		return "<invalid>"
	}
}

// Meta is the naming metadata needed to create a region. It is only read
// when the key is not registered yet.
type Meta struct {
	Scope    string
	Function string
	File     string
	Line     uint64
}

// IsZero reports whether no naming metadata was supplied.
func (m Meta) IsZero() bool {
	return m.Scope == "" && m.Function == ""
}

// DisplayName returns "<scope>:<function>".
func (m Meta) DisplayName() string {
	return m.Scope + ":" + m.Function
}

// Group returns the top-level component of the scope.
func (m Meta) Group() string {
	return groupOf(m.Scope)
}

func groupOf(scope string) string {
	top, _, _ := strings.Cut(scope, ".")
	return top
}
