package gradeengine

import (
	"fmt"
)

// ScaleEntry maps a score floor to a letter grade and its GPA value.
type ScaleEntry struct {
	MinimumScore float64 `json:"minimum_score"`
	LetterGrade  string  `json:"letter_grade"`
	GPAValue     float64 `json:"gpa_value"`
}

// GradingScale is an immutable, versioned table of entries ordered by descending MinimumScore.
type GradingScale struct {
	name    string
	version string
	entries []ScaleEntry
}

// Name returns the scale's name.
func (s GradingScale) Name() string { return s.name }

// Version returns the scale's version tag.
func (s GradingScale) Version() string { return s.version }

// Entries returns a copy of the scale entries.
func (s GradingScale) Entries() []ScaleEntry {
	out := make([]ScaleEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

const (
	ScaleNameLiveEntry  = "live-entry"
	ScaleNameTranscript = "transcript"
)

var liveEntryScale = GradingScale{
	name:    ScaleNameLiveEntry,
	version: "live-v1",
	entries: []ScaleEntry{
		{MinimumScore: 90, LetterGrade: "A", GPAValue: 4.0},
		{MinimumScore: 85, LetterGrade: "A-", GPAValue: 3.7},
		{MinimumScore: 80, LetterGrade: "B+", GPAValue: 3.3},
		{MinimumScore: 75, LetterGrade: "B", GPAValue: 3.0},
		{MinimumScore: 70, LetterGrade: "B-", GPAValue: 2.7},
		{MinimumScore: 65, LetterGrade: "C+", GPAValue: 2.3},
		{MinimumScore: 60, LetterGrade: "C", GPAValue: 2.0},
		{MinimumScore: 55, LetterGrade: "C-", GPAValue: 1.7},
		{MinimumScore: 50, LetterGrade: "D", GPAValue: 1.0},
		{MinimumScore: 0, LetterGrade: GradeFail, GPAValue: 0.0},
	},
}

var transcriptScale = GradingScale{
	name:    ScaleNameTranscript,
	version: "transcript-v1",
	entries: []ScaleEntry{
		{MinimumScore: 83, LetterGrade: "A", GPAValue: 4.00},
		{MinimumScore: 80, LetterGrade: "A-", GPAValue: 3.67},
		{MinimumScore: 77, LetterGrade: "B+", GPAValue: 3.33},
		{MinimumScore: 73, LetterGrade: "B", GPAValue: 3.00},
		{MinimumScore: 70, LetterGrade: "B-", GPAValue: 2.67},
		{MinimumScore: 64, LetterGrade: "C+", GPAValue: 2.33},
		{MinimumScore: 56, LetterGrade: "C", GPAValue: 2.00},
		{MinimumScore: 50, LetterGrade: "C-", GPAValue: 1.67},
		{MinimumScore: 47, LetterGrade: "D+", GPAValue: 1.33},
		{MinimumScore: 43, LetterGrade: "D", GPAValue: 1.00},
		{MinimumScore: 40, LetterGrade: "D-", GPAValue: 0.67},
		{MinimumScore: 0, LetterGrade: GradeFail, GPAValue: 0.00},
	},
}

// LiveEntryScale is used when grades are entered and for the stored running GPA.
func LiveEntryScale() GradingScale { return liveEntryScale }

// TranscriptScale is used when transcripts are issued.
func TranscriptScale() GradingScale { return transcriptScale }

// ScaleByName resolves one of the compiled-in scales.
func ScaleByName(name string) (GradingScale, bool) {
	switch name {
	case ScaleNameLiveEntry:
		return liveEntryScale, true
	case ScaleNameTranscript:
		return transcriptScale, true
	default:
		return GradingScale{}, false
	}
}

// NewGradingScale builds a custom scale after validating it.
func NewGradingScale(name, version string, entries []ScaleEntry) (GradingScale, error) {
	scale := GradingScale{name: name, version: version, entries: make([]ScaleEntry, len(entries))}
	copy(scale.entries, entries)
	if err := scale.Validate(); err != nil {
		return GradingScale{}, err
	}
	return scale, nil
}

// Validate checks that entries descend strictly, stay within bounds and end with a 0 floor.
func (s GradingScale) Validate() error {
	if len(s.entries) == 0 {
		return fmt.Errorf("scale %s: no entries", s.name)
	}
	for i, entry := range s.entries {
		if entry.MinimumScore < 0 || entry.MinimumScore > 100 {
			return fmt.Errorf("scale %s: entry %s minimum %.2f out of range", s.name, entry.LetterGrade, entry.MinimumScore)
		}
		if entry.GPAValue < 0 || entry.GPAValue > 4 {
			return fmt.Errorf("scale %s: entry %s gpa %.2f out of range", s.name, entry.LetterGrade, entry.GPAValue)
		}
		if entry.LetterGrade == "" {
			return fmt.Errorf("scale %s: entry %d has no letter grade", s.name, i)
		}
		if i > 0 && entry.MinimumScore >= s.entries[i-1].MinimumScore {
			return fmt.Errorf("scale %s: entries not in descending order at %s", s.name, entry.LetterGrade)
		}
	}
	if last := s.entries[len(s.entries)-1]; last.MinimumScore != 0 {
		return fmt.Errorf("scale %s: last entry must start at 0, got %.2f", s.name, last.MinimumScore)
	}
	return nil
}
