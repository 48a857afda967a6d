package classifier

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap"
)

// Intent is the grounding set a user message asks for.
type Intent string

const (
	IntentNone    Intent = "none"
	IntentCountry Intent = "country"
	IntentNews    Intent = "news"
)

// Classification is the outcome of Classify. Trigger is the keyword or token
// that selected the intent and is kept for diagnostics only.
type Classification struct {
	Intent  Intent
	Trigger string
}

// Tokens shorter than this never trigger a direct lookup.
const minTokenLength = 4

var (
	countryKeywords = newKeywordSet(
		// tr
		"ülke", "seyahat", "gezi", "gezmek", "tatil", "vize", "destinasyon",
		"nereye", "gidebilirim", "gitmek", "öner", "tavsiye", "ziyaret", "rota", "yurt dışı",
		// en
		"country", "countries", "travel", "trip", "vacation", "holiday", "visa",
		"destination", "visit", "recommend", "where to go", "abroad",
		// de, fr, es, ru
		"reise", "urlaub", "voyage", "vacances", "pays", "viaje", "vacaciones", "país",
		"страна", "путешеств", "отпуск",
	)

	newsKeywords = newKeywordSet(
		"haber", "gündem", "güncel", "son dakika", "duyuru",
		"news", "headline", "latest", "announcement",
		"nachrichten", "actualité", "noticia", "новост",
	)
)

type keywordSet map[string]struct{}

func newKeywordSet(words ...string) keywordSet {
	set := make(keywordSet, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// firstIn returns a keyword that occurs as a substring of text.
func (s keywordSet) firstIn(text string) (string, bool) {
	for kw := range s {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// MatchKeywords classifies message by keyword substrings alone.
// Country intent wins over news intent.
func MatchKeywords(message string) Classification {
	text := strings.ToLower(message)
	if kw, ok := countryKeywords.firstIn(text); ok {
		return Classification{Intent: IntentCountry, Trigger: kw}
	}
	if kw, ok := newsKeywords.firstIn(text); ok {
		return Classification{Intent: IntentNews, Trigger: kw}
	}
	return Classification{Intent: IntentNone}
}

// CountryMatcher looks up countries whose name or slug contains term.
type CountryMatcher interface {
	SearchCountries(ctx context.Context, term string, limit int) ([]models.Country, error)
}

type Classifier struct {
	matcher CountryMatcher
	logger  *zap.Logger
}

func New(matcher CountryMatcher, logger *zap.Logger) *Classifier {
	return &Classifier{
		matcher: matcher,
		logger:  logger,
	}
}

// Classify decides the intent of the latest user message. Country keywords
// are checked first, then every token of the message is looked up against
// the country store, and only then news keywords.
func (c *Classifier) Classify(ctx context.Context, message string) Classification {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return Classification{Intent: IntentNone}
	}

	if kw, ok := countryKeywords.firstIn(text); ok {
		return Classification{Intent: IntentCountry, Trigger: kw}
	}

	if token, ok := c.directMatch(ctx, text); ok {
		return Classification{Intent: IntentCountry, Trigger: token}
	}

	if kw, ok := newsKeywords.firstIn(text); ok {
		return Classification{Intent: IntentNews, Trigger: kw}
	}

	return Classification{Intent: IntentNone}
}

func (c *Classifier) directMatch(ctx context.Context, text string) (string, bool) {
	if c.matcher == nil {
		return "", false
	}

	for _, token := range Tokens(text) {
		matches, err := c.matcher.SearchCountries(ctx, token, 1)
		if err != nil {
			c.logger.Warn("Country lookup failed",
				zap.Error(err),
				zap.String("token", token))
			continue
		}
		if len(matches) > 0 {
			c.logger.Debug("Direct country match",
				zap.String("token", token),
				zap.String("country", matches[0].Name))
			return token, true
		}
	}
	return "", false
}

// Tokens splits text on whitespace, trims surrounding punctuation and keeps
// tokens longer than three characters.
func Tokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if utf8.RuneCountInString(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
