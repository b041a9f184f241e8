package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// IDKind discriminates provisional identities from persisted ones.
type IDKind string

const (
	// KindProvisional marks identities allocated locally before the remote
	// store has acknowledged the record.
	KindProvisional IDKind = "provisional"
	// KindPersisted marks identities assigned by the remote store.
	KindPersisted IDKind = "persisted"
)

// ID is a tagged record identity. The kind travels with the value so
// provisional detection is a field check rather than marker sniffing, which
// cannot collide with any server id format.
type ID struct {
	Kind  IDKind `json:"kind"`
	Value string `json:"value"`
}

// PersistedID wraps an identity assigned by the remote store.
func PersistedID(value string) ID {
	return ID{Kind: KindPersisted, Value: value}
}

// ProvisionalID wraps a locally allocated token.
func ProvisionalID(token string) ID {
	return ID{Kind: KindProvisional, Value: token}
}

// IsProvisional reports whether the identity has not been acknowledged by the
// remote store.
func (id ID) IsProvisional() bool {
	return id.Kind == KindProvisional
}

// IsZero reports whether the identity is unset.
func (id ID) IsZero() bool {
	return id.Kind == "" && id.Value == ""
}

func (id ID) String() string {
	if id.IsZero() {
		return "<unset>"
	}
	return fmt.Sprintf("%s:%s", id.Kind, id.Value)
}

// IDAllocator produces provisional identities for records not yet known to
// the remote store. Implementations must return values unique within one
// process lifetime. The allocator is injectable so tests can use
// deterministic identities.
type IDAllocator interface {
	NextProvisional() ID
}

// SystemAllocator derives provisional identities from the wall clock plus
// random entropy. Collision probability is negligible for the lifetime of an
// editing session.
type SystemAllocator struct{}

// NextProvisional returns a fresh provisional identity.
func (SystemAllocator) NextProvisional() ID {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return ProvisionalID(fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b[:])))
}

// SequenceAllocator allocates monotonically numbered provisional identities.
// Intended for tests that assert on identity values.
type SequenceAllocator struct {
	prefix string
	seq    atomic.Int64
}

// NewSequenceAllocator returns an allocator producing "<prefix>-1",
// "<prefix>-2", and so on.
func NewSequenceAllocator(prefix string) *SequenceAllocator {
	if prefix == "" {
		prefix = "tmp"
	}
	return &SequenceAllocator{prefix: prefix}
}

// NextProvisional returns the next numbered provisional identity.
func (a *SequenceAllocator) NextProvisional() ID {
	return ProvisionalID(fmt.Sprintf("%s-%d", a.prefix, a.seq.Add(1)))
}
