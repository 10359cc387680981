// Package persona holds the five broker personas and the rules for assigning
// one to a conversation from its lead score.
package persona

import "strings"

// Type groups personas by how hard they push.
type Type string

const (
	Aggressive   Type = "aggressive"
	Balanced     Type = "balanced"
	Conservative Type = "conservative"
)

// Persona is read-only reference data. Copies are handed out so callers can
// never mutate the catalog.
type Persona struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          Type     `json:"type"`
	Title         string   `json:"title"`
	Tone          []string `json:"tone"`
	UrgencyLevel  string   `json:"urgencyLevel"`
	ResponseStyle string   `json:"responseStyle"`
	Specialty     string   `json:"specialty"`
	SignOff       string   `json:"signOff"`
}

const (
	MichelleChen = "michelle-chen"
	JasmineLee   = "jasmine-lee"
	RachelTan    = "rachel-tan"
	SarahWong    = "sarah-wong"
	GraceLim     = "grace-lim"
)

var catalog = []Persona{
	{
		ID:            MichelleChen,
		Name:          "Michelle Chen",
		Type:          Aggressive,
		Title:         "Senior Mortgage Specialist",
		Tone:          []string{"confident", "direct", "results-driven"},
		UrgencyLevel:  "high",
		ResponseStyle: "short sentences, leads with numbers and a clear next step",
		Specialty:     "high-value private purchases",
		SignOff:       "Let's lock this in",
	},
	{
		ID:            JasmineLee,
		Name:          "Jasmine Lee",
		Type:          Aggressive,
		Title:         "Senior Mortgage Specialist",
		Tone:          []string{"energetic", "decisive", "warm"},
		UrgencyLevel:  "high",
		ResponseStyle: "upbeat, highlights rate windows and time-sensitive packages",
		Specialty:     "new launches and quick completions",
		SignOff:       "Talk soon",
	},
	{
		ID:            RachelTan,
		Name:          "Rachel Tan",
		Type:          Balanced,
		Title:         "Mortgage Consultant",
		Tone:          []string{"friendly", "clear", "patient"},
		UrgencyLevel:  "medium",
		ResponseStyle: "explains the reasoning behind each figure before recommending",
		Specialty:     "first-time buyers and HDB upgraders",
		SignOff:       "Happy to help",
	},
	{
		ID:            SarahWong,
		Name:          "Sarah Wong",
		Type:          Balanced,
		Title:         "Refinancing Consultant",
		Tone:          []string{"analytical", "reassuring", "practical"},
		UrgencyLevel:  "medium",
		ResponseStyle: "compares options side by side with savings estimates",
		Specialty:     "refinancing and commercial loans",
		SignOff:       "Best regards",
	},
	{
		ID:            GraceLim,
		Name:          "Grace Lim",
		Type:          Conservative,
		Title:         "Mortgage Advisor",
		Tone:          []string{"gentle", "educational", "no-pressure"},
		UrgencyLevel:  "low",
		ResponseStyle: "takes it step by step and focuses on building understanding",
		Specialty:     "early-stage planning",
		SignOff:       "Take your time",
	},
}

// All returns the catalog in a fixed order.
func All() []Persona {
	out := make([]Persona, len(catalog))
	for i, p := range catalog {
		out[i] = p.clone()
	}
	return out
}

// Lookup finds a persona by id or display name, case-insensitively.
func Lookup(key string) (Persona, bool) {
	key = strings.TrimSpace(strings.ToLower(key))
	for _, p := range catalog {
		if p.ID == key || strings.ToLower(p.Name) == key {
			return p.clone(), true
		}
	}
	return Persona{}, false
}

// FirstName is used in greetings.
func (p Persona) FirstName() string {
	if i := strings.IndexByte(p.Name, ' '); i > 0 {
		return p.Name[:i]
	}
	return p.Name
}

func (p Persona) clone() Persona {
	p.Tone = append([]string(nil), p.Tone...)
	return p
}
