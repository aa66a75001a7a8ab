// Package classifier assigns a category to inbound messages using an
// ordered rule evaluation: sender rules outrank important-keyword rules,
// which outrank normal-keyword rules; the default is normal. Within a
// family the first configured rule that matches wins.
package classifier

import (
	"strings"

	"smartmailer/internal/config"
	"smartmailer/internal/model"
)

// Classification is the verdict for a message: the category plus the
// rule that produced it ("none" when the default applied).
type Classification struct {
	Category    model.Category
	MatchedRule string
}

// Classifier evaluates the configured rule lists. Rule sets are captured
// at construction and never mutated, so classification is deterministic
// for the process lifetime.
type Classifier struct {
	importantSenders  []string
	importantKeywords []string
	normalKeywords    []string
}

// New creates a Classifier from the rule configuration. Rule entries are
// lowered once here; matching is case-insensitive substring (sender rules
// are case-insensitive exact matches).
func New(rules config.RulesConfig) *Classifier {
	return &Classifier{
		importantSenders:  rules.ImportantSendersList(),
		importantKeywords: rules.ImportantKeywordsList(),
		normalKeywords:    rules.NormalKeywordsList(),
	}
}

// Classify returns the category and matched rule for a message. It is
// pure: no I/O, no state, no failure modes.
func (c *Classifier) Classify(msg model.Message) Classification {
	sender := strings.ToLower(msg.Sender)
	subject := strings.ToLower(msg.Subject)
	body := strings.ToLower(msg.BodyText)

	for _, addr := range c.importantSenders {
		if sender == addr {
			return Classification{Category: model.CategoryImportant, MatchedRule: addr}
		}
	}

	if rule, ok := matchKeyword(c.importantKeywords, subject, body); ok {
		return Classification{Category: model.CategoryImportant, MatchedRule: rule}
	}

	if rule, ok := matchKeyword(c.normalKeywords, subject, body); ok {
		return Classification{Category: model.CategoryNormal, MatchedRule: rule}
	}

	return Classification{Category: model.CategoryNormal, MatchedRule: model.MatchedRuleNone}
}

// matchKeyword returns the first keyword occurring in subject or body.
// Matching is plain substring, not word-boundary aware.
func matchKeyword(keywords []string, subject, body string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(subject, kw) || strings.Contains(body, kw) {
			return kw, true
		}
	}
	return "", false
}
