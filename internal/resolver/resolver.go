// Package resolver works out which grounded candidates the model actually
// recommended. The ordinal tag line is preferred; when the model forgets it or
// gets every ordinal wrong, candidate names are matched against the prose.
package resolver

import (
	"regexp"
	"strconv"
	"strings"
)

// Tag is the label of the trailing ordinal line, e.g. "COUNTRIES: [1, 4]".
type Tag string

const (
	TagCountries Tag = "COUNTRIES"
	TagNews      Tag = "NEWS"
)

type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategyTagged      Strategy = "tagged"
	StrategyNameMatched Strategy = "name_matched"
)

// Entity is a grounding candidate with an identifier of type ID.
type Entity[ID comparable] interface {
	EntityID() ID
	Label() string
	Key() string
}

// Resolution is the outcome of Resolve. IDs are always identifiers of
// candidates that were passed in. Dropped lists ordinals from the tag line that
// fell outside the candidate list.
type Resolution[ID comparable] struct {
	Strategy Strategy
	IDs      []ID
	Dropped  []int
}

var (
	tagPatterns = map[Tag]*regexp.Regexp{
		TagCountries: regexp.MustCompile(`\bCOUNTRIES\s*:\s*\[([^\]]*)\]`),
		TagNews:      regexp.MustCompile(`\bNEWS\s*:\s*\[([^\]]*)\]`),
	}
	anyTagPattern = regexp.MustCompile(`[ \t]*\b(?:COUNTRIES|NEWS)\s*:\s*\[[^\]]*\]`)

	emphasisStripper = strings.NewReplacer("*", "", "_", "", "~", "", "`", "")
)

// Ordinals parses the last tag line of the given kind. Tokens that are not
// integers are skipped. It returns nil when the reply carries no such tag.
func Ordinals(reply string, tag Tag) []int {
	pattern, ok := tagPatterns[tag]
	if !ok {
		return nil
	}
	matches := pattern.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return nil
	}

	var ordinals []int
	for _, part := range strings.Split(matches[len(matches)-1][1], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		ordinals = append(ordinals, n)
	}
	return ordinals
}

// Resolve maps the reply back onto candidates. Ordinals from the tag line are
// bounds-checked against the candidate list; only when none of them resolves
// does the name/slug fallback run against the reply and the user message.
func Resolve[ID comparable, E Entity[ID]](reply, userMessage string, tag Tag, candidates []E) Resolution[ID] {
	res := Resolution[ID]{Strategy: StrategyNone}
	if len(candidates) == 0 {
		return res
	}

	seen := make(map[ID]struct{})
	for _, ordinal := range Ordinals(reply, tag) {
		if ordinal < 0 || ordinal >= len(candidates) {
			res.Dropped = append(res.Dropped, ordinal)
			continue
		}
		id := candidates[ordinal].EntityID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res.IDs = append(res.IDs, id)
	}
	if len(res.IDs) > 0 {
		res.Strategy = StrategyTagged
		return res
	}

	if ids := MatchNames[ID](reply, userMessage, candidates); len(ids) > 0 {
		res.Strategy = StrategyNameMatched
		res.IDs = ids
	}
	return res
}

// MatchNames returns, in candidate order, every candidate whose name or slug
// occurs in the reply (with markdown emphasis removed) or in the user message.
func MatchNames[ID comparable, E Entity[ID]](reply, userMessage string, candidates []E) []ID {
	haystacks := []string{
		strings.ToLower(emphasisStripper.Replace(StripTags(reply))),
		strings.ToLower(userMessage),
	}

	var ids []ID
	seen := make(map[ID]struct{})
	for _, c := range candidates {
		if _, dup := seen[c.EntityID()]; dup {
			continue
		}
		if mentioned(haystacks, c.Label()) || mentioned(haystacks, c.Key()) {
			seen[c.EntityID()] = struct{}{}
			ids = append(ids, c.EntityID())
		}
	}
	return ids
}

func mentioned(haystacks []string, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	for _, h := range haystacks {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

// StripTags removes every COUNTRIES/NEWS tag from reply and trims the result.
// Applying it twice yields the same string as applying it once.
func StripTags(reply string) string {
	for {
		next := anyTagPattern.ReplaceAllString(reply, "")
		if next == reply {
			break
		}
		reply = next
	}
	return strings.TrimSpace(reply)
}
