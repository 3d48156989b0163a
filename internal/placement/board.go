// Package placement holds the chips a learner has put on a case's boxes
// during one attempt, and the order in which boxes were first filled.
package placement

import "github.com/mind-engage/cms485-trainer/internal/casebook"

// Board is not safe for concurrent use; callers serialize access per learner.
type Board struct {
	placements map[string]string // boxID -> chipID
	order      []string          // boxIDs in first-fill order
}

func NewBoard() *Board {
	return &Board{placements: map[string]string{}}
}

// Place puts chipID on boxID, replacing any previous chip. The box is
// appended to the completion order only when it was empty.
func (b *Board) Place(boxID, chipID string) {
	if boxID == "" || chipID == "" {
		return
	}
	if _, filled := b.placements[boxID]; !filled {
		b.order = append(b.order, boxID)
	}
	b.placements[boxID] = chipID
}

// Remove clears boxID. A later Place appends it again at the end.
func (b *Board) Remove(boxID string) {
	if _, filled := b.placements[boxID]; !filled {
		return
	}
	delete(b.placements, boxID)
	for i, id := range b.order {
		if id == boxID {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Board) Reset() {
	b.placements = map[string]string{}
	b.order = nil
}

func (b *Board) ChipFor(boxID string) (string, bool) {
	id, ok := b.placements[boxID]
	return id, ok
}

// AllFilled reports whether every box of c has a placement.
func (b *Board) AllFilled(c casebook.Case) bool {
	for _, box := range c.Boxes {
		if b.placements[box.ID] == "" {
			return false
		}
	}
	return true
}

func (b *Board) Empty() bool { return len(b.placements) == 0 }

func (b *Board) Placements() map[string]string {
	out := make(map[string]string, len(b.placements))
	for k, v := range b.placements {
		out[k] = v
	}
	return out
}

func (b *Board) Order() []string {
	return append([]string(nil), b.order...)
}
