package bot

import (
	"strings"
	"unicode"
)

type intent int

const (
	intentNone intent = iota
	intentHuman
	intentBooking
	intentPricing
	intentTours
	intentLocation
	intentHours
	intentContact
	intentThanks
	intentGreeting
)

// rules are checked in order; the first rule with a matching keyword wins.
var rules = []struct {
	intent   intent
	words    []string
	phrases  []string
	maxWords int // 0 means any length
}{
	{intent: intentHuman,
		words:   []string{"human", "agent", "person", "representative", "operator", "staff"},
		phrases: []string{"talk to someone", "speak to someone", "real person"}},
	{intent: intentPricing,
		words:   []string{"price", "prices", "pricing", "cost", "costs", "rate", "rates", "fee", "fees", "aed", "cheap", "expensive"},
		phrases: []string{"how much"}},
	{intent: intentBooking,
		words: []string{"book", "booking", "reserve", "reservation", "availability", "available"}},
	{intent: intentLocation,
		words:   []string{"where", "location", "located", "address", "pickup", "directions", "pier", "marina", "creek"},
		phrases: []string{"pick up", "meeting point"}},
	{intent: intentHours,
		words:   []string{"when", "time", "times", "hours", "schedule", "depart", "departs", "departure", "duration", "long"},
		phrases: []string{"what time"}},
	{intent: intentTours,
		words: []string{"tour", "tours", "cruise", "cruises", "dhow", "yacht", "dinner", "options", "packages", "trip"}},
	{intent: intentContact,
		words: []string{"contact", "phone", "email", "call", "whatsapp", "number"}},
	{intent: intentThanks,
		words: []string{"thanks", "thank", "thx", "cheers", "shukran"}, maxWords: 6},
	{intent: intentGreeting,
		words: []string{"hi", "hello", "hey", "salam", "marhaba", "morning", "evening", "afternoon"}, maxWords: 5},
}

// detect classifies a visitor message.
func detect(text string) intent {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return intentNone
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	normalized := strings.Join(words, " ")

	for _, r := range rules {
		if r.maxWords > 0 && len(words) > r.maxWords {
			continue
		}
		for _, p := range r.phrases {
			if strings.Contains(normalized, p) {
				return r.intent
			}
		}
		for _, w := range r.words {
			if _, ok := set[w]; ok {
				return r.intent
			}
		}
	}
	return intentNone
}
