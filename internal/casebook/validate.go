package casebook

import (
	"errors"
	"fmt"
)

// Validate checks the authoring invariants of a case. Every defect found is
// reported; the result is nil when the case is well formed.
func Validate(c Case) error {
	var errs []error
	chips := make(map[string]Chip, len(c.Chips))
	for _, ch := range c.Chips {
		if _, dup := chips[ch.ID]; dup {
			errs = append(errs, fmt.Errorf("case %s: duplicate chip %q", c.ID, ch.ID))
		}
		chips[ch.ID] = ch
	}
	boxes := make(map[string]bool, len(c.Boxes))
	for _, b := range c.Boxes {
		if boxes[b.ID] {
			errs = append(errs, fmt.Errorf("case %s: duplicate box %q", c.ID, b.ID))
		}
		boxes[b.ID] = true
	}
	for _, ch := range c.Chips {
		if !boxes[ch.BoxTarget] {
			errs = append(errs, fmt.Errorf("case %s: chip %q targets unknown box %q", c.ID, ch.ID, ch.BoxTarget))
		}
	}
	for _, b := range c.Boxes {
		ch, ok := chips[b.CorrectChipID]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("case %s: box %q correct chip %q does not exist", c.ID, b.ID, b.CorrectChipID))
			continue
		case ch.BoxTarget != b.ID:
			errs = append(errs, fmt.Errorf("case %s: box %q correct chip %q targets %q", c.ID, b.ID, ch.ID, ch.BoxTarget))
		case !ch.IsCorrect:
			errs = append(errs, fmt.Errorf("case %s: box %q correct chip %q is not flagged correct", c.ID, b.ID, ch.ID))
		}
		n := 0
		for _, other := range c.ChipsFor(b.ID) {
			if other.IsCorrect {
				n++
			}
		}
		if n != 1 {
			errs = append(errs, fmt.Errorf("case %s: box %q has %d correct chips, want 1", c.ID, b.ID, n))
		}
		for _, r := range b.Remediation {
			if r.ChipID == "" {
				continue
			}
			if rc, ok := chips[r.ChipID]; !ok || rc.BoxTarget != b.ID {
				errs = append(errs, fmt.Errorf("case %s: box %q remediation references foreign chip %q", c.ID, b.ID, r.ChipID))
			}
		}
	}
	if c.SafetyBox != "" && !boxes[c.SafetyBox] {
		errs = append(errs, fmt.Errorf("case %s: safety box %q does not exist", c.ID, c.SafetyBox))
	}
	if c.PriorityBox != "" && !boxes[c.PriorityBox] {
		errs = append(errs, fmt.Errorf("case %s: priority box %q does not exist", c.ID, c.PriorityBox))
	}
	if c.Policy == PolicyProportional && c.Points <= 0 {
		errs = append(errs, fmt.Errorf("case %s: proportional policy needs a point budget", c.ID))
	}
	return errors.Join(errs...)
}
