package event

import "testing"

func TestDefaultTable_CreateThenDeleteCancels(t *testing.T) {
	got := DefaultTable().Resolve(Create, Delete)
	if got != Cancel {
		t.Fatalf("Create->Delete = %v, want Cancel", got)
	}
}

func TestDefaultTable_DeleteThenCreateDegradesToModify(t *testing.T) {
	got := DefaultTable().Resolve(Delete, Create)
	kind, ok := got.AsKind()
	if !ok || kind != Modify {
		t.Fatalf("Delete->Create = %v, want Modify", got)
	}
}

func TestDefaultTable_ModifyDominatesAttrib(t *testing.T) {
	got := DefaultTable().Resolve(Modify, Attrib)
	kind, ok := got.AsKind()
	if !ok || kind != Modify {
		t.Fatalf("Modify->Attrib = %v, want Modify", got)
	}
}

func TestDefaultTable_SameKindIdempotent(t *testing.T) {
	for _, k := range []Kind{Attrib, Modify, Create, Delete} {
		got := DefaultTable().Resolve(k, k)
		kind, ok := got.AsKind()
		if !ok || kind != k {
			t.Fatalf("%v->%v = %v, want %v", k, k, got, k)
		}
	}
}

func TestResolve_UnknownPairDefaultsToStack(t *testing.T) {
	tbl := Table{}
	if got := tbl.Resolve(Create, Modify); got != Stack {
		t.Fatalf("empty table Resolve = %v, want Stack", got)
	}
}

func TestDelay_TailWalksToYoungest(t *testing.T) {
	d1 := &Delay{Kind: Modify, Pathname: "a"}
	d2 := &Delay{Kind: Create, Pathname: "a"}
	d3 := &Delay{Kind: Attrib, Pathname: "a"}
	d1.Next = d2
	d2.Next = d3

	if tail := d1.Tail(); tail != d3 {
		t.Fatalf("Tail() = %v, want d3", tail.Kind)
	}
}

func TestKind_IsMove(t *testing.T) {
	for _, k := range []Kind{MoveFrom, MoveTo} {
		if !k.IsMove() {
			t.Fatalf("%v.IsMove() = false, want true", k)
		}
	}
	for _, k := range []Kind{Attrib, Modify, Create, Delete, Move, None} {
		if k.IsMove() {
			t.Fatalf("%v.IsMove() = true, want false", k)
		}
	}
}
