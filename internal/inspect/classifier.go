package inspect

import (
	"sort"

	"github.com/MeKo-Tech/boxguard/internal/detector"
)

// LabelSet is a set of normalised class names.
type LabelSet map[string]struct{}

// NewLabelSet builds a set from labels, normalising each entry.
func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[detector.NormalizeLabel(l)] = struct{}{}
	}
	return s
}

// LabelsOf reduces detections to their label set.
func LabelsOf(dets []detector.Detection) LabelSet {
	s := make(LabelSet, len(dets))
	for _, d := range dets {
		s[detector.NormalizeLabel(d.Label)] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s LabelSet) Has(label string) bool {
	_, ok := s[detector.NormalizeLabel(label)]
	return ok
}

// Intersects reports whether s and other share a label.
func (s LabelSet) Intersects(other LabelSet) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for l := range small {
		if _, ok := big[l]; ok {
			return true
		}
	}
	return false
}

// Sorted returns the labels in lexical order.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Verdict is the classifier's per-frame decision.
type Verdict struct {
	ObjectPresent bool `json:"object_present"`
	Defective     bool `json:"defective"`
}

// Classifier maps a zone's label set to a Verdict. It keeps no state.
type Classifier struct {
	PresentLabel string
	DefectLabels LabelSet
}

// DefaultPresentLabel is the class that marks a package in the zone.
const DefaultPresentLabel = "box"

// DefaultDefectLabels are the classes that mark a package as damaged.
var DefaultDefectLabels = []string{"hole", "open", "torn"}

// NewClassifier builds a classifier with normalised labels.
func NewClassifier(present string, defects []string) Classifier {
	return Classifier{
		PresentLabel: detector.NormalizeLabel(present),
		DefectLabels: NewLabelSet(defects...),
	}
}

// Classify decides presence and defectiveness for one frame.
func (c Classifier) Classify(labels LabelSet) Verdict {
	return Verdict{
		ObjectPresent: labels.Has(c.PresentLabel),
		Defective:     labels.Intersects(c.DefectLabels),
	}
}
