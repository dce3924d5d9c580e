package snapshot

import (
	"strings"
	"time"
)

// Key is the ordered tuple of identifier fields that uniquely names a
// tracked subject within one dataset. Keys are never shared across datasets.
type Key []string

const keySeparator = "\x1f"

// ID returns a stable string form of the key, usable as a map key and as
// the key column in storage.
func (k Key) ID() string {
	return strings.Join(k, keySeparator)
}

// ParseKeyID is the inverse of Key.ID.
func ParseKeyID(id string) Key {
	return Key(strings.Split(id, keySeparator))
}

// Label returns a human readable form of the key for notifications and CLI
// output.
func (k Key) Label() string {
	return strings.Join(k, " / ")
}

// Record is one observation of a subject at one snapshot time.
//
// Values only ever hold float64 or string (the normalizer canonicalizes
// dates to "2006-01-02" strings), so a record roundtrips through JSON
// without type drift.
type Record struct {
	Key        Key
	Values     map[string]any
	ObservedAt time.Time
}

type ChangeKind string

const (
	KindNew     ChangeKind = "new"
	KindChanged ChangeKind = "changed"
	KindDropped ChangeKind = "dropped"
)

// Change is a record tagged with how it differs from the last known state.
type Change struct {
	Record
	Kind ChangeKind
}

type FieldKind int

const (
	FieldString FieldKind = iota
	FieldFloat
	FieldDate
)

// Field declares one column expected from a source.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Key marks the field as part of the entity key. Key fields are
	// always treated as required.
	Key bool
}

// Schema describes the shape of one dataset: which raw columns exist, how
// to coerce them, which compose the key, and how to compare values.
type Schema struct {
	Dataset string
	Fields  []Field
	// ValueField names the primary numeric field reported in
	// notifications.
	ValueField string
	// Tolerance is the absolute difference under which two floats are
	// considered equal.
	Tolerance float64
	// AbsenceValue is written into every float field of a dropped
	// record (a subject that fell out of the snapshot).
	AbsenceValue float64
	// RecordDrops controls whether disappearance from a snapshot is
	// materialized as a change row. Ranked listings want this off,
	// reported registers want it on.
	RecordDrops bool
}

// KeyOf extracts the key tuple from coerced values, in field declaration
// order.
func (s Schema) KeyOf(values map[string]any) Key {
	var k Key
	for _, f := range s.Fields {
		if !f.Key {
			continue
		}
		v, _ := values[f.Name].(string)
		k = append(k, v)
	}
	return k
}
