// Package match builds a TF-IDF vector space over template descriptions and
// selects templates for free-form input by cosine similarity. The index is
// immutable once built; Rebuild swaps it atomically so concurrent queries
// never see a torn state.
package match

import (
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"taskpilot/runtime"
)

// suggestFloor is the looser similarity floor used for ranked suggestions.
const suggestFloor = 0.05

type index struct {
	templates []*runtime.Template
	vectors   []map[string]float64
	idf       map[string]float64
}

// Matcher implements runtime.Matcher.
type Matcher struct {
	l             *slog.Logger
	minSimilarity float64
	index         atomic.Pointer[index]
}

var _ runtime.Matcher = &Matcher{}

func New(l *slog.Logger, minSimilarity float64) *Matcher {
	m := &Matcher{l: l, minSimilarity: minSimilarity}
	m.index.Store(&index{idf: map[string]float64{}})
	return m
}

// Rebuild indexes each template's name, keywords, and description. Must be
// called whenever the catalog reloads.
func (m *Matcher) Rebuild(templates []*runtime.Template) {
	docs := make([][]string, len(templates))
	df := make(map[string]int)
	for i, t := range templates {
		terms := terms(normalize(t.Document()))
		docs[i] = terms
		for _, term := range unique(terms) {
			df[term]++
		}
	}

	// Smoothed idf, the usual "as if one extra document contained every
	// term" formulation, so no term gets a zero weight.
	n := len(templates)
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log(float64(1+n)/float64(1+count)) + 1
	}

	vectors := make([]map[string]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = vectorize(doc, idf)
	}

	m.index.Store(&index{templates: templates, vectors: vectors, idf: idf})
	m.l.Info("matcher index built", "templates", n, "terms", len(idf))
}

// Match vectorizes the input in the index's space and returns the template
// with the highest cosine similarity, provided it reaches the configured
// floor. Ties break toward the earlier template: the scan keeps the first
// maximum it sees, and template order follows catalog insertion order.
func (m *Matcher) Match(input string) (*runtime.Template, float64, bool) {
	idx := m.index.Load()
	if len(idx.templates) == 0 {
		return nil, 0, false
	}

	query := vectorize(terms(normalizeInput(input)), idx.idf)

	best := -1
	bestScore := 0.0
	for i, vec := range idx.vectors {
		score := dot(query, vec)
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	if bestScore < m.minSimilarity {
		m.l.Info("best match below similarity floor",
			"input", input,
			"score", bestScore,
			"floor", m.minSimilarity)
		return nil, bestScore, false
	}

	t := idx.templates[best]
	m.l.Info("matched template", "task", t.TaskID, "score", bestScore)
	return t, bestScore, true
}

// Suggest returns up to max templates ranked by similarity, using a looser
// floor than Match so partial input still yields candidates.
func (m *Matcher) Suggest(input string, max int) []runtime.Suggestion {
	idx := m.index.Load()
	if len(idx.templates) == 0 || max <= 0 {
		return nil
	}

	query := vectorize(terms(normalizeInput(input)), idx.idf)

	type scored struct {
		i     int
		score float64
	}
	var candidates []scored
	for i, vec := range idx.vectors {
		if score := dot(query, vec); score >= suggestFloor {
			candidates = append(candidates, scored{i, score})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]runtime.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		t := idx.templates[c.i]
		out = append(out, runtime.Suggestion{TaskID: t.TaskID, Name: t.Name, Score: c.score})
	}
	return out
}

// vectorize builds an L2-normalised tf-idf vector. Terms outside the index
// vocabulary are dropped, matching the fit/transform split of the classic
// vectorizer.
func vectorize(terms []string, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64)
	for _, term := range terms {
		if w, ok := idf[term]; ok {
			vec[term] += w
		}
	}

	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for term, w := range vec {
		vec[term] = w / norm
	}
	return vec
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, w := range a {
		sum += w * b[term]
	}
	return sum
}

func unique(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
