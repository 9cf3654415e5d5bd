package sentiment

import (
	"regexp"
	"strings"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	mentionPattern = regexp.MustCompile(`@\w+`)
	hashtagPattern = regexp.MustCompile(`#\w+`)
	nonWordPattern = regexp.MustCompile(`[^\w\s]`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// CleanText strips links, mentions, hashtags and punctuation, then collapses
// whitespace.
func CleanText(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	text = hashtagPattern.ReplaceAllString(text, "")
	text = nonWordPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var symbolAliases = map[string][]string{
	"btc": {"bitcoin", "BTC"},
	"eth": {"ethereum", "ETH"},
}

// BuildQuery joins the symbol, its aliases and extra keywords as
// `"a" OR "b"` without duplicates.
func BuildQuery(symbol string, keywords ...string) string {
	terms := []string{symbol}
	terms = append(terms, symbolAliases[strings.ToLower(symbol)]...)
	terms = append(terms, keywords...)

	seen := make(map[string]struct{}, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// QueryTerms splits a query built by BuildQuery back into its terms.
func QueryTerms(query string) []string {
	parts := strings.Split(query, " OR ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
