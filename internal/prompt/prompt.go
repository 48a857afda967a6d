// Package prompt assembles the system instructions that ground the model on
// the candidate list of a request.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xaenox/travel-concierge/internal/grounding"
	"github.com/xaenox/travel-concierge/internal/models"
	"github.com/xaenox/travel-concierge/internal/resolver"
)

const DefaultLanguage = "Turkish"

const persona = `You are the travel concierge of a travel magazine. You help readers choose destinations, plan trips and keep up with travel news.`

type Assembler struct {
	language string
}

func NewAssembler(language string) *Assembler {
	if language == "" {
		language = DefaultLanguage
	}
	return &Assembler{language: language}
}

type countryEntry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	ID    string `json:"id"`
}

type newsEntry struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	ID    int64  `json:"id"`
}

// Context renders the candidate list as an indexed JSON block. Indices are the
// positions in the set and are what the model must echo back in the tag line.
func Context(set grounding.Set) string {
	var entries any
	switch {
	case len(set.Countries) > 0:
		list := make([]countryEntry, len(set.Countries))
		for i, c := range set.Countries {
			list[i] = countryEntry{Index: i, Name: c.Name, Slug: c.Slug, ID: c.ID}
		}
		entries = list
	case len(set.News) > 0:
		list := make([]newsEntry, len(set.News))
		for i, n := range set.News {
			list[i] = newsEntry{Index: i, Title: n.Title, Slug: n.Slug, ID: n.ID}
		}
		entries = list
	default:
		return ""
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// TagFor returns the tag line label the model must use for set.
func TagFor(set grounding.Set) resolver.Tag {
	if set.Kind == models.KindNews {
		return resolver.TagNews
	}
	return resolver.TagCountries
}

// System builds the full system prompt for set.
func (a *Assembler) System(set grounding.Set) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\nRULES:\n")

	tag := TagFor(set)
	noun := "countries"
	if tag == resolver.TagNews {
		noun = "news articles"
	}

	rules := []string{
		fmt.Sprintf("Only recommend %s that appear in the AVAILABLE list below. Never invent entries that are not in the list.", noun),
		"Write every name exactly as it appears in the list.",
		fmt.Sprintf("Always answer in %s. Keep proper nouns exactly as listed.", a.language),
		"If the user asks about something that is not in the list, say clearly that you do not have information about it.",
		fmt.Sprintf("End your reply with one final line in the form %s: [i, j, k] listing the index of every entry you recommended in your answer. Use %s: [] if you recommended nothing.", tag, tag),
	}
	for i, rule := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}

	b.WriteString("\nAVAILABLE ")
	b.WriteString(strings.ToUpper(noun))
	b.WriteString(":\n")
	b.WriteString(Context(set))
	b.WriteString("\n")

	return b.String()
}

// Messages prepends the system prompt to the caller's conversation. System
// turns supplied by the caller are dropped.
func Messages(system string, history []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(history)+1)
	out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: system})
	for _, m := range history {
		if m.Role == models.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
