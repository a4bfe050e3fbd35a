package processing

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Keyword pairs a surface form with its ranking score.
type Keyword struct {
	Term  string
	Score float64
}

// Weights applied when merging strategy scores into the final ranking.
// TF-IDF scores are L2-normalised fractions, hence the extra scale.
const (
	weightFrequency = 1.0
	weightTFIDF     = 2.0
	weightRAKE      = 1.5
	weightBigrams   = 1.2
	tfidfScale      = 100.0
)

var (
	tokenRe = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9]{2,}\b`)
	wordRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]{2,}$`)
)

// Extractor derives ranking keywords from cleaned text. All strategies share
// one stopword set; the lemmatiser only affects frequency ranking.
type Extractor struct {
	stopwords map[string]struct{}
	lemmatize func(string) string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLemmatizer replaces the built-in plural folding.
func WithLemmatizer(fn func(string) string) Option {
	return func(e *Extractor) { e.lemmatize = fn }
}

// WithExtraStopwords extends the stopword set.
func WithExtraStopwords(words ...string) Option {
	return func(e *Extractor) {
		for _, w := range words {
			e.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewExtractor builds an extractor with the default stopwords and plural
// folding as its lemmatiser.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		stopwords: defaultStopwords(),
		lemmatize: foldPlural,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// foldPlural reduces common English plural suffixes. Deliberately
// conservative: folding too aggressively merges unrelated terms.
func foldPlural(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case len(w) > 3 && strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func (e *Extractor) isStopword(w string) bool {
	_, ok := e.stopwords[w]
	return ok
}

// tokens returns the lowercase valid words of text, stopwords removed.
func (e *Extractor) tokens(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, w := range raw {
		if len(w) >= 3 && !e.isStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// Frequency ranks lemmatised tokens by occurrence count. Tokens below
// minFreq occurrences are dropped.
func (e *Extractor) Frequency(text string, topN, minFreq int) []Keyword {
	if minFreq < 1 {
		minFreq = 1
	}
	counts := make(map[string]int)
	for _, w := range e.tokens(text) {
		counts[e.lemmatize(w)]++
	}
	kws := make([]Keyword, 0, len(counts))
	for term, n := range counts {
		if n >= minFreq {
			kws = append(kws, Keyword{Term: term, Score: float64(n)})
		}
	}
	return topKeywords(kws, topN)
}

// TFIDF scores the target text's unigrams and bigrams against a corpus.
// Terms must appear in at least 2 corpus documents and in at most 80% of
// them. Scores are L2-normalised. Returns nil when the corpus is too small
// to carry document-frequency signal.
func (e *Extractor) TFIDF(text string, corpus []string, topN int) []Keyword {
	n := len(corpus)
	if n < 2 {
		return nil
	}

	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, term := range e.grams(doc) {
			seen[term] = struct{}{}
		}
		for term := range seen {
			df[term]++
		}
	}

	tf := make(map[string]int)
	for _, term := range e.grams(text) {
		tf[term]++
	}

	maxDF := int(0.8 * float64(n))
	if maxDF < 1 {
		maxDF = 1
	}

	var norm float64
	scores := make(map[string]float64)
	for term, f := range tf {
		d := df[term]
		if d < 2 || d > maxDF {
			continue
		}
		idf := math.Log(float64(1+n)/float64(1+d)) + 1
		s := float64(f) * idf
		scores[term] = s
		norm += s * s
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)

	kws := make([]Keyword, 0, len(scores))
	for term, s := range scores {
		kws = append(kws, Keyword{Term: term, Score: s / norm})
	}
	return topKeywords(kws, topN)
}

// grams returns the stopword-filtered token stream of doc plus its adjacent
// bigrams ("a b").
func (e *Extractor) grams(doc string) []string {
	toks := e.tokens(doc)
	out := make([]string, 0, len(toks)*2)
	out = append(out, toks...)
	for i := 0; i+1 < len(toks); i++ {
		out = append(out, toks[i]+" "+toks[i+1])
	}
	return out
}

// RAKE ranks 1-3 word candidate phrases. Candidates are runs of valid words
// between stopwords and punctuation; word scores are degree/frequency and a
// phrase scores the sum of its words.
func (e *Extractor) RAKE(text string, topN int) []Keyword {
	phrases := e.candidatePhrases(text)
	if len(phrases) == 0 {
		return nil
	}

	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, ph := range phrases {
		for _, w := range ph {
			freq[w]++
			degree[w] += len(ph)
		}
	}

	seen := make(map[string]struct{})
	kws := make([]Keyword, 0, len(phrases))
	for _, ph := range phrases {
		surface := strings.Join(ph, " ")
		if _, dup := seen[surface]; dup {
			continue
		}
		seen[surface] = struct{}{}
		var score float64
		for _, w := range ph {
			score += float64(degree[w]) / float64(freq[w])
		}
		kws = append(kws, Keyword{Term: surface, Score: score})
	}
	return topKeywords(kws, topN)
}

// candidatePhrases splits text at punctuation and stopwords and keeps runs
// of 1-3 valid words.
func (e *Extractor) candidatePhrases(text string) [][]string {
	var phrases [][]string
	var run []string

	flush := func() {
		if n := len(run); n >= 1 && n <= 3 {
			phrases = append(phrases, run)
		}
		run = nil
	}

	for _, frag := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch r {
		case '.', '!', '?', ',', ';', ':', '(', ')', '[', ']', '"':
			return true
		}
		return false
	}) {
		for _, word := range strings.Fields(frag) {
			word = strings.Trim(word, "'-")
			if wordRe.MatchString(word) && !e.isStopword(word) {
				run = append(run, word)
				continue
			}
			flush()
		}
		flush()
	}
	return phrases
}

// Bigrams ranks adjacent valid-token pairs occurring at least minFreq times.
func (e *Extractor) Bigrams(text string, topN, minFreq int) []Keyword {
	if minFreq < 1 {
		minFreq = 1
	}
	toks := e.tokens(text)
	counts := make(map[string]int)
	for i := 0; i+1 < len(toks); i++ {
		counts[toks[i]+" "+toks[i+1]]++
	}
	kws := make([]Keyword, 0, len(counts))
	for term, n := range counts {
		if n >= minFreq {
			kws = append(kws, Keyword{Term: term, Score: float64(n)})
		}
	}
	return topKeywords(kws, topN)
}

// Best merges all strategies into one ranking and returns the top terms.
// A nil or small corpus simply removes the TF-IDF contribution.
func (e *Extractor) Best(text string, corpus []string, topN int) []string {
	if topN < 1 {
		topN = 10
	}
	perStrategy := topN * 2

	combined := make(map[string]float64)
	for _, kw := range e.Frequency(text, perStrategy, 1) {
		combined[kw.Term] += kw.Score * weightFrequency
	}
	for _, kw := range e.TFIDF(text, corpus, perStrategy) {
		combined[kw.Term] += kw.Score * tfidfScale * weightTFIDF
	}
	for _, kw := range e.RAKE(text, perStrategy) {
		combined[kw.Term] += kw.Score * weightRAKE
	}
	for _, kw := range e.Bigrams(text, perStrategy, 2) {
		combined[kw.Term] += kw.Score * weightBigrams
	}

	kws := make([]Keyword, 0, len(combined))
	for term, score := range combined {
		kws = append(kws, Keyword{Term: term, Score: score})
	}
	kws = topKeywords(kws, topN)

	terms := make([]string, len(kws))
	for i, kw := range kws {
		terms[i] = kw.Term
	}
	return terms
}

// topKeywords sorts by score descending (term ascending on ties) and trims
// to n entries.
func topKeywords(kws []Keyword, n int) []Keyword {
	sort.Slice(kws, func(i, j int) bool {
		if kws[i].Score != kws[j].Score {
			return kws[i].Score > kws[j].Score
		}
		return kws[i].Term < kws[j].Term
	})
	if n > 0 && len(kws) > n {
		kws = kws[:n]
	}
	return kws
}
