// Package diff computes path-addressed deltas between two snapshots.
//
// The comparison is a recursive walk over the lowered ir trees:
//   - Record: fields in declaration order
//   - Map: union of keys in UTF-16 order (orders are keyed by internal id)
//   - List: positional; common indexes recurse, extra indexes become
//     ARRAY_ADD / ARRAY_DELETE
//   - Null on one side of a scalar comparison reads as absent, giving NEW or DELETED
//
// There is no element matching inside lists: for main and side items the
// position is the identity. Output order depends only on the inputs, so
// repeated diffs of identical snapshots yield identical delta lists.
package diff

import (
	"strconv"
	"strings"

	"github.com/roach88/ordertrail/internal/ir"
	"github.com/roach88/ordertrail/internal/snapshot"
)

// Kind categorizes a delta.
type Kind string

const (
	KindNew         Kind = "NEW"
	KindDeleted     Kind = "DELETED"
	KindEdited      Kind = "EDITED"
	KindArrayAdd    Kind = "ARRAY_ADD"
	KindArrayDelete Kind = "ARRAY_DELETE"
)

// Step is one element of a delta path: a key or a list index.
type Step struct {
	Key   string
	Index int
	IsIdx bool
}

// KeyStep builds a key step.
func KeyStep(k string) Step { return Step{Key: k} }

// IndexStep builds an index step.
func IndexStep(i int) Step { return Step{Index: i, IsIdx: true} }

func (s Step) String() string {
	if s.IsIdx {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path addresses a location in the lowered snapshot tree.
type Path []Step

// String renders the path dotted, e.g. "orders.o-1.mainItems.0.quantity".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Key returns the key at position i, or "" if i is out of range or an index.
func (p Path) Key(i int) string {
	if i < 0 || i >= len(p) || p[i].IsIdx {
		return ""
	}
	return p[i].Key
}

// Index returns the list index at position i and whether it is one.
func (p Path) Index(i int) (int, bool) {
	if i < 0 || i >= len(p) || !p[i].IsIdx {
		return 0, false
	}
	return p[i].Index, true
}

func (p Path) with(s Step) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = s
	return out
}

// Delta is one atomic difference between two snapshots.
// Lhs is set for DELETED, EDITED and ARRAY_DELETE; Rhs for NEW, EDITED and ARRAY_ADD.
type Delta struct {
	Kind Kind
	Path Path
	Lhs  ir.Value
	Rhs  ir.Value
}

// Diff compares two snapshots.
func Diff(before, after snapshot.Snapshot) []Delta {
	return Values(before.Value(), after.Value())
}

// Values compares two lowered trees.
func Values(before, after ir.Value) []Delta {
	var out []Delta
	walk(&out, nil, before, after)
	return out
}

func walk(out *[]Delta, path Path, lhs, rhs ir.Value) {
	lhsAbsent, rhsAbsent := absent(lhs), absent(rhs)
	switch {
	case lhsAbsent && rhsAbsent:
		return
	case lhsAbsent:
		*out = append(*out, Delta{Kind: KindNew, Path: path, Rhs: rhs})
		return
	case rhsAbsent:
		*out = append(*out, Delta{Kind: KindDeleted, Path: path, Lhs: lhs})
		return
	}

	switch l := lhs.(type) {
	case ir.Record:
		if r, ok := rhs.(ir.Record); ok {
			walkRecord(out, path, l, r)
			return
		}
	case ir.Map:
		if r, ok := rhs.(ir.Map); ok {
			walkMap(out, path, l, r)
			return
		}
	case ir.List:
		if r, ok := rhs.(ir.List); ok {
			walkList(out, path, l, r)
			return
		}
	}

	if !ir.Equal(lhs, rhs) {
		*out = append(*out, Delta{Kind: KindEdited, Path: path, Lhs: lhs, Rhs: rhs})
	}
}

func absent(v ir.Value) bool {
	if v == nil {
		return true
	}
	_, isNull := v.(ir.Null)
	return isNull
}

// walkRecord visits before's fields in order, then any field only after has.
func walkRecord(out *[]Delta, path Path, l, r ir.Record) {
	seen := make(map[string]bool, len(l))
	for _, f := range l {
		seen[f.Key] = true
		rv, _ := r.Get(f.Key)
		walk(out, path.with(KeyStep(f.Key)), f.Value, rv)
	}
	for _, f := range r {
		if !seen[f.Key] {
			walk(out, path.with(KeyStep(f.Key)), nil, f.Value)
		}
	}
}

func walkMap(out *[]Delta, path Path, l, r ir.Map) {
	union := make(ir.Map, len(l)+len(r))
	for k := range l {
		union[k] = ir.Null{}
	}
	for k := range r {
		union[k] = ir.Null{}
	}
	for _, k := range union.SortedKeys() {
		walk(out, path.with(KeyStep(k)), l[k], r[k])
	}
}

func walkList(out *[]Delta, path Path, l, r ir.List) {
	common := min(len(l), len(r))
	for i := 0; i < common; i++ {
		walk(out, path.with(IndexStep(i)), l[i], r[i])
	}
	for i := common; i < len(r); i++ {
		*out = append(*out, Delta{Kind: KindArrayAdd, Path: path.with(IndexStep(i)), Rhs: r[i]})
	}
	for i := common; i < len(l); i++ {
		*out = append(*out, Delta{Kind: KindArrayDelete, Path: path.with(IndexStep(i)), Lhs: l[i]})
	}
}
