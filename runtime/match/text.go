package match

import (
	"regexp"
	"strings"
)

// synonyms is a fixed normalisation table applied to input text before
// vectorization. It compensates for the small, keyword-driven corpus; nothing
// here is learned. Multi-word phrases come first so they win over their
// single-word prefixes.
var synonyms = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{wordPattern("e-mail"), "email"},
	{wordPattern("go to"), "open website"},
	{wordPattern("look up"), "search"},
	{wordPattern("mail"), "email"},
	{wordPattern("message"), "email"},
	{wordPattern("letter"), "email"},
	{wordPattern("browse"), "open website"},
	{wordPattern("surf"), "open website"},
	{wordPattern("visit"), "open website"},
	{wordPattern("launch"), "open"},
	{wordPattern("start"), "open"},
	{wordPattern("run"), "open"},
	{wordPattern("execute"), "open"},
	{wordPattern("write"), "type"},
	{wordPattern("enter"), "type"},
	{wordPattern("input"), "type"},
	{wordPattern("fill"), "type"},
	{wordPattern("press"), "click"},
	{wordPattern("hit"), "click"},
	{wordPattern("tap"), "click"},
	{wordPattern("select"), "click"},
}

func wordPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
}

// stopWords is a compact English stop-word list; enough to keep filler out of
// the tiny corpus without an external dependency.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "could": true,
	"do": true, "does": true, "did": true, "for": true, "from": true,
	"had": true, "has": true, "have": true, "he": true, "her": true,
	"his": true, "i": true, "if": true, "in": true, "is": true, "it": true,
	"its": true, "me": true, "my": true, "no": true, "not": true, "of": true,
	"on": true, "or": true, "our": true, "she": true, "should": true,
	"so": true, "some": true, "than": true, "that": true, "the": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "to": true, "too": true,
	"us": true, "was": true, "we": true, "were": true, "will": true,
	"with": true, "would": true, "you": true, "your": true, "please": true,
}

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

// normalize lowercases, strips punctuation, and collapses whitespace. Used
// for template documents.
func normalize(text string) string {
	text = strings.ToLower(text)
	text = nonWordPattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// normalizeInput additionally expands synonyms and abbreviations; applied to
// user input only, so the corpus side stays exactly what the catalog says.
// Synonyms run before the punctuation strip so hyphenated entries like
// "e-mail" still match.
func normalizeInput(text string) string {
	text = strings.ToLower(text)
	text = strings.Join(strings.Fields(text), " ")
	for _, s := range synonyms {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}
	return normalize(text)
}

// terms tokenizes normalized text into unigrams plus adjacent bigrams, with
// stop words removed first so bigrams span them.
func terms(text string) []string {
	fields := strings.Fields(text)
	tokens := fields[:0:0]
	for _, f := range fields {
		if !stopWords[f] {
			tokens = append(tokens, f)
		}
	}

	out := make([]string, 0, len(tokens)*2)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}
