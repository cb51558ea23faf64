package ocr

import (
	"strings"
	"unicode"
)

// Normalize drops every whitespace rune so line breaks and OCR spacing
// do not affect substring matching.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// PhraseClass is a named vocabulary. Phrases are matched after normalization.
type PhraseClass struct {
	Name    string
	Phrases []string
}

type Outcome struct {
	// Class is empty when no phrase matched.
	Class  string
	Phrase string
	Text   string
}

func (o Outcome) Indeterminate() bool { return o.Class == "" }

// Classify returns the first class, in order, with a phrase contained in text.
func Classify(text string, classes []PhraseClass) Outcome {
	norm := Normalize(text)
	for _, c := range classes {
		for _, p := range c.Phrases {
			np := Normalize(p)
			if np != "" && strings.Contains(norm, np) {
				return Outcome{Class: c.Name, Phrase: p, Text: text}
			}
		}
	}
	return Outcome{Text: text}
}
