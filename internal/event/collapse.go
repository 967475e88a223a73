package event

// Verdict is the result of consulting a Table for a (prior, new) kind
// pair. It is either the Cancel/Stack sentinel or a concrete Kind the
// prior delay should be rewritten to.
type Verdict int8

const (
	// Cancel annihilates the pending delay (spec.md §4.2: "-1" / cancel).
	Cancel Verdict = -1
	// Stack keeps the prior delay and appends the new one behind it
	// (spec.md §4.2: "0" / stack).
	Stack Verdict = 0
)

// AsKind reports the collapse target Kind for a verdict that is neither
// Cancel nor Stack, and whether the verdict was in fact a concrete kind.
func (v Verdict) AsKind() (Kind, bool) {
	if v == Cancel || v == Stack {
		return 0, false
	}
	return Kind(v), true
}

func kindVerdict(k Kind) Verdict { return Verdict(k) }

// Table is the 2-D collapse policy: Table[prior][new] says what happens
// when an event of kind `new` is offered for a pathname that already has
// a pending delay of kind `prior`. Entries for Move, MoveFrom, MoveTo and
// None are intentionally absent — moves bypass the table entirely
// (spec.md §4.2 step 4) and None never appears as an offered kind.
type Table map[Kind]map[Kind]Verdict

// DefaultTable is the collapse policy from spec.md §4.2: a Create
// followed by a Delete annihilates; a Delete followed by a Create
// degrades to Modify (the file came back with new content); same-kind
// repeats are idempotent; Modify dominates Attrib.
func DefaultTable() Table {
	return Table{
		Attrib: {
			Attrib: kindVerdict(Attrib),
			Modify: kindVerdict(Modify),
			Create: kindVerdict(Create),
			Delete: kindVerdict(Delete),
		},
		Modify: {
			Attrib: kindVerdict(Modify),
			Modify: kindVerdict(Modify),
			Create: kindVerdict(Create),
			Delete: kindVerdict(Delete),
		},
		Create: {
			Attrib: kindVerdict(Create),
			Modify: kindVerdict(Create),
			Create: kindVerdict(Create),
			Delete: Cancel,
		},
		Delete: {
			Attrib: kindVerdict(Delete),
			Modify: kindVerdict(Delete),
			Create: kindVerdict(Modify),
			Delete: kindVerdict(Delete),
		},
	}
}

// Resolve looks up the verdict for (prior, new), defaulting to Stack for
// any pair the table does not cover — an unconfigured collapse table
// degrades gracefully to "keep both events, in order" rather than
// silently dropping one.
func (t Table) Resolve(prior, new Kind) Verdict {
	row, ok := t[prior]
	if !ok {
		return Stack
	}
	v, ok := row[new]
	if !ok {
		return Stack
	}
	return v
}
