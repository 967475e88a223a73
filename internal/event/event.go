// Package event defines the closed set of filesystem event kinds and the
// Delay record that the per-Sync queue buffers, collapses and dispatches.
//
// The Kind enumeration and its String method mirror the style of
// fsnotify.Op/fsnotify.Event (a small closed set with a readable
// stringer), adapted from a bitmask (fsnotify composes multiple ops on
// one Event) to the plain closed enum spec.md requires, since a Delay
// carries exactly one logical kind at a time.
package event

import "time"

// Kind is one member of the closed event-kind set. None is the tombstone
// value a Delay is rewritten to when cancelled.
type Kind int8

const (
	None Kind = iota + 1
	Attrib
	Modify
	Create
	Delete
	Move
	MoveFrom
	MoveTo
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case Attrib:
		return "Attrib"
	case Modify:
		return "Modify"
	case Create:
		return "Create"
	case Delete:
		return "Delete"
	case Move:
		return "Move"
	case MoveFrom:
		return "MoveFrom"
	case MoveTo:
		return "MoveTo"
	default:
		return "Unknown"
	}
}

// IsMove reports whether k is one of the synthetic move halves. Delays
// carrying these kinds are exempt from collapse (spec.md §4.2 step 4).
func (k Kind) IsMove() bool {
	return k == MoveFrom || k == MoveTo
}

// Delay is a single pending filesystem event for one pathname, queued on
// a Sync until its Alarm elapses and a worker slot is free.
//
// Stacked delays (spec.md §4.2, "stack" resolution) form a short singly
// linked chain via Next: delayname[p] always addresses the oldest delay
// in the chain, collapse and cancel operate on the youngest tail entry,
// and the chain is consumed front-to-back as each head fires or is
// cancelled. This resolves the ambiguity the DESIGN NOTES (spec.md §9)
// flag in the original source's single-pointer delayname index.
type Delay struct {
	Kind      Kind
	Pathname  string
	Pathname2 string
	Alarm     time.Time

	// Next is the next-younger stacked delay for the same pathname, or
	// nil if none is stacked. Only ever set by Sync.offer's "stack"
	// branch; read by Sync when a head delay is popped or cancelled.
	Next *Delay
}

// Tail walks to the youngest delay in d's stack chain. Collapse
// resolution always targets the tail, since that is the most recently
// offered (and therefore still-pending) event for the pathname.
func (d *Delay) Tail() *Delay {
	for d.Next != nil {
		d = d.Next
	}
	return d
}
