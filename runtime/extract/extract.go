// Package extract parses task-specific parameters out of free-form input
// text. It is a per-task dispatch table of pattern rules, not a language
// model: each supported task id has a fixed set of regular expressions, and
// anything they do not capture is simply absent from the result.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"taskpilot/runtime"
)

// Placeholder keys produced by the extractor. Step values reference them as
// {recipient_email} and friends.
const (
	KeyRecipientEmail = "recipient_email"
	KeyEmailSubject   = "email_subject"
	KeySearchQuery    = "search_query"
	KeyTargetURL      = "target_url"
)

// defaultSubject is used when an email task carries no recognisable subject
// clause.
const defaultSubject = "Inquiry"

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Subject clauses stop before a trailing " to ..." so "regarding the
	// budget to john" keeps only the budget part.
	subjectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)regarding\s+(.+?)(?:\s+to\s+|\s*$)`),
		regexp.MustCompile(`(?i)about\s+(.+?)(?:\s+to\s+|\s*$)`),
		regexp.MustCompile(`(?i)subject\s+(.+?)(?:\s+to\s+|\s*$)`),
	}

	searchPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)search\s+(?:for\s+)?(.+)`),
		regexp.MustCompile(`(?i)find\s+(?:information\s+about\s+)?(.+)`),
		regexp.MustCompile(`(?i)look\s+(?:up\s+)?(.+)`),
		regexp.MustCompile(`(?i)google\s+(.+)`),
	}

	urlPattern     = regexp.MustCompile(`https?://\S+`)
	websitePattern = regexp.MustCompile(`(?i)(?:go\s+to\s+|visit\s+|open\s+)?(\S+\.(?:com|org|net)\S*)`)
)

// Extractor implements runtime.Extractor.
type Extractor struct {
	l *slog.Logger
}

var _ runtime.Extractor = &Extractor{}

func New(l *slog.Logger) *Extractor {
	return &Extractor{l: l}
}

// Extract returns the dynamic values for the given task. Unknown task ids
// yield an empty map; extraction never fails.
func (e *Extractor) Extract(input, taskID string) runtime.DynamicValues {
	values := runtime.DynamicValues{}

	switch taskID {
	case "email_compose":
		e.extractEmail(input, values)
	case "web_search":
		e.extractSearch(input, values)
	case "web_navigate":
		e.extractNavigate(input, values)
	}

	e.l.Info("extracted dynamic values", "task", taskID, "values", values)
	return values
}

func (e *Extractor) extractEmail(input string, values runtime.DynamicValues) {
	if m := emailPattern.FindString(input); m != "" {
		values[KeyRecipientEmail] = m
	}

	for _, p := range subjectPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			values[KeyEmailSubject] = strings.TrimSpace(m[1])
			break
		}
	}
	if values[KeyEmailSubject] == "" {
		values[KeyEmailSubject] = defaultSubject
	}
}

func (e *Extractor) extractSearch(input string, values runtime.DynamicValues) {
	for _, p := range searchPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			values[KeySearchQuery] = strings.TrimSpace(m[1])
			return
		}
	}
	// No pattern matched: the whole input is the query, so a search run is
	// never empty-handed unless the input was.
	if q := strings.TrimSpace(input); q != "" {
		values[KeySearchQuery] = q
	}
}

func (e *Extractor) extractNavigate(input string, values runtime.DynamicValues) {
	if m := urlPattern.FindString(input); m != "" {
		values[KeyTargetURL] = m
		return
	}
	if m := websitePattern.FindStringSubmatch(input); m != nil {
		site := m[1]
		if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
			site = "https://" + site
		}
		values[KeyTargetURL] = site
	}
}
