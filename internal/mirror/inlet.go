package mirror

import "github.com/lipengyu/lsyncd/internal/event"

// Inlet is the opaque handle an ActionFunc receives: its Sync's
// configuration and the next event to service (spec.md glossary
// "Inlet"). It is constructed by the dispatcher immediately before
// invoking the handler and discarded afterwards — it carries no identity
// beyond the one delay it was built for.
type Inlet struct {
	sync  *Sync
	delay *event.Delay
}

// NewInlet builds the inlet for a popped delay. Exported for the
// dispatcher package; action authors never construct one directly.
func NewInlet(s *Sync, d *event.Delay) *Inlet {
	return &Inlet{sync: s, delay: d}
}

// Config returns the governing Sync's policy.
func (in *Inlet) Config() Config { return in.sync.Config }

// NextEvent resolves the delay into the concrete source/target paths an
// action needs to invoke its transfer command.
func (in *Inlet) NextEvent() Event {
	spath := joinPath(in.sync.Source, in.delay.Pathname)
	tpath := joinPath(in.sync.TargetIdent, in.delay.Pathname)
	return Event{SourcePath: spath, TargetPath: tpath, Kind: in.delay.Kind}
}

// Source returns the Sync's source root.
func (in *Inlet) Source() string { return in.sync.Source }

// TargetIdent returns the Sync's opaque target identifier.
func (in *Inlet) TargetIdent() string { return in.sync.TargetIdent }

func joinPath(root, rel string) string {
	if rel == "" {
		return root
	}
	if len(root) > 0 && root[len(root)-1] == '/' {
		return root + rel
	}
	return root + "/" + rel
}
