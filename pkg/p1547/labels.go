package p1547

import "fmt"

// LabelSequence hands out the sequential step labels used by the test
// procedures: "Step A" .. "Step Z", then "Step AA", "Step BB" and so on.
// A sequence never repeats a label.
type LabelSequence struct {
	next   byte
	double bool
}

// NewLabelSequence starts labelling at the given letter. The standard's
// procedures typically start at 'G' (steps A-F configure the EUT).
func NewLabelSequence(start byte) *LabelSequence {
	if start < 'A' || start > 'Z' {
		start = 'A'
	}
	return &LabelSequence{next: start}
}

// Next returns the current label and advances the sequence.
func (s *LabelSequence) Next() string {
	if s.next > 'Z' {
		s.next = 'A'
		s.double = true
	}
	var label string
	if s.double {
		label = fmt.Sprintf("Step %c%c", s.next, s.next)
	} else {
		label = fmt.Sprintf("Step %c", s.next)
	}
	s.next++
	return label
}
