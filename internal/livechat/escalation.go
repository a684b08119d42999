// Package livechat holds the escalation heuristics for the chat widget.
package livechat

import "strings"

// defaultPhrases are the human-request triggers. This is a heuristic gate,
// not a classifier; false negatives are acceptable and the list is treated
// as configuration.
var defaultPhrases = []string{
	"talk to",
	"speak to",
	"speak with",
	"chat with",
	"human",
	"real person",
	"live chat",
	"representative",
	"agent",
	"support",
	"owner",
	"expert",
	"connect me",
	"connect with",
	"contact someone",
	"contact us",
	"i need help",
	"i need to speak",
	"i want to talk",
	"i want to speak",
	"join chat",
	"talk now",
	"online now",
	"can i talk",
	"can we talk",
}

// Detector decides whether a visitor message asks for a human.
type Detector struct {
	phrases []string
}

// NewDetector builds a detector. An empty phrase list falls back to the
// built-in defaults.
func NewDetector(phrases []string) *Detector {
	cleaned := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		cleaned = defaultPhrases
	}
	return &Detector{phrases: cleaned}
}

// ShouldEscalate reports whether the message expresses intent to reach a
// human. Case-insensitive substring match, pure, no side effects.
func (d *Detector) ShouldEscalate(message string) bool {
	message = strings.ToLower(strings.TrimSpace(message))
	if message == "" {
		return false
	}
	for _, phrase := range d.phrases {
		if strings.Contains(message, phrase) {
			return true
		}
	}
	return false
}
