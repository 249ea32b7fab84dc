// Package prompt derives provider-ready prompts from raw user text. The
// transforms are deterministic string manipulation with no state or external
// calls.
package prompt

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Enhanced is the result of enhancing a raw user prompt.
type Enhanced struct {
	Prompt   string
	Negative string
}

const styleSuffix = "high detail, sharp focus, professional lighting"

// defaultNegative lists artifacts every generation should avoid regardless of
// the user's prompt.
var defaultNegative = []string{"blurry", "low quality", "watermark", "text artifacts", "deformed"}

// avoidMarkers introduce user-specified avoidance clauses, e.g.
// "a beach, no people" or "a city skyline without cars".
var avoidMarkers = []string{"no ", "without ", "avoid "}

// Enhance normalizes the raw prompt, splits out avoidance clauses into the
// negative prompt and appends the house style suffix.
func Enhance(raw string) Enhanced {
	titler := cases.Title(language.Und, cases.NoLower)

	var positives []string
	negatives := append([]string(nil), defaultNegative...)

	for _, clause := range strings.Split(raw, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		lower := strings.ToLower(clause)
		matched := false
		for _, marker := range avoidMarkers {
			if strings.HasPrefix(lower, marker) {
				if term := strings.TrimSpace(clause[len(marker):]); term != "" {
					negatives = append(negatives, strings.ToLower(term))
				}
				matched = true
				break
			}
		}
		if !matched {
			positives = append(positives, clause)
		}
	}

	if len(positives) == 0 {
		positives = []string{strings.TrimSpace(raw)}
	}
	// Title-case only the leading subject; the style tags stay lowercase.
	positives[0] = titler.String(positives[0])

	return Enhanced{
		Prompt:   strings.Join(positives, ", ") + ", " + styleSuffix,
		Negative: strings.Join(negatives, ", "),
	}
}
