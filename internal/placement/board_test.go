package placement

import (
	"reflect"
	"testing"

	"github.com/mind-engage/cms485-trainer/internal/casebook"
)

func TestPlaceAppendsOnlyOnFirstFill(t *testing.T) {
	b := NewBoard()
	b.Place("box15", "a")
	b.Place("box11", "b")
	b.Place("box15", "c") // overwrite keeps position

	if got := b.Order(); !reflect.DeepEqual(got, []string{"box15", "box11"}) {
		t.Fatalf("order = %v", got)
	}
	if id, _ := b.ChipFor("box15"); id != "c" {
		t.Fatalf("box15 chip = %q, want c", id)
	}
}

func TestRemoveThenReplaceMovesToEnd(t *testing.T) {
	b := NewBoard()
	b.Place("box15", "a")
	b.Place("box21_wound", "w")
	b.Remove("box15")
	if got := b.Order(); !reflect.DeepEqual(got, []string{"box21_wound"}) {
		t.Fatalf("order after remove = %v", got)
	}
	if _, ok := b.ChipFor("box15"); ok {
		t.Fatal("box15 still placed after remove")
	}
	b.Place("box15", "a")
	if got := b.Order(); !reflect.DeepEqual(got, []string{"box21_wound", "box15"}) {
		t.Fatalf("order after re-place = %v", got)
	}
	b.Remove("missing") // no-op
	if len(b.Order()) != 2 {
		t.Fatal("removing an empty box changed the order")
	}
}

func TestResetClearsBoth(t *testing.T) {
	b := NewBoard()
	b.Place("x", "1")
	b.Reset()
	if !b.Empty() || len(b.Order()) != 0 {
		t.Fatalf("reset left state: %v %v", b.Placements(), b.Order())
	}
}

func TestAllFilled(t *testing.T) {
	c := casebook.Case{Boxes: []casebook.Box{{ID: "a"}, {ID: "b"}}}
	b := NewBoard()
	b.Place("a", "1")
	if b.AllFilled(c) {
		t.Fatal("AllFilled true with one empty box")
	}
	b.Place("b", "2")
	if !b.AllFilled(c) {
		t.Fatal("AllFilled false with every box placed")
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	b := NewBoard()
	b.Place("a", "1")
	p := b.Placements()
	p["a"] = "mutated"
	o := b.Order()
	o[0] = "mutated"
	if id, _ := b.ChipFor("a"); id != "1" || b.Order()[0] != "a" {
		t.Fatal("snapshot aliases board state")
	}
}
