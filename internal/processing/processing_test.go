package processing

import (
	"strings"
	"testing"
)

// --- Cleaner Tests ---

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"strips urls", "see https://example.com/page for details", "see for details"},
		{"strips www urls", "visit www.example.com today", "visit today"},
		{"strips emails", "contact admin@example.com now", "contact now"},
		{"collapses whitespace", "too   many\t\tspaces\n\nhere", "too many spaces here"},
		{"collapses punctuation runs", "wait!!! what??", "wait. what."},
		{"keeps accents", "déjà vu in café", "déjà vu in café"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  first line  \n\n  second   line \n\t\n third"
	want := "first line second line third"
	if got := NormalizeWhitespace(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("one two  three"); n != 3 {
		t.Errorf("expected 3 words, got %d", n)
	}
	if n := WordCount(""); n != 0 {
		t.Errorf("expected 0 words, got %d", n)
	}
}

// --- Frequency Tests ---

func TestFrequencyRanking(t *testing.T) {
	e := NewExtractor()
	text := "golang concurrency is fun. golang channels make concurrency simple. channels everywhere."

	kws := e.Frequency(text, 5, 1)
	if len(kws) == 0 {
		t.Fatal("expected keywords")
	}
	// "golang", "concurrency" and "channel" (folded plural) each occur twice
	top := map[string]float64{}
	for _, kw := range kws {
		top[kw.Term] = kw.Score
	}
	if top["golang"] != 2 {
		t.Errorf("expected golang count 2, got %v", top["golang"])
	}
	if top["channel"] != 2 {
		t.Errorf("expected folded plural 'channel' count 2, got %v", top["channel"])
	}
	if _, ok := top["is"]; ok {
		t.Error("stopword 'is' should be filtered")
	}
	if _, ok := top["fun"]; !ok {
		t.Error("'fun' should survive the length filter")
	}
}

func TestFrequencyMinFreq(t *testing.T) {
	e := NewExtractor()
	kws := e.Frequency("alpha alpha beta", 10, 2)
	if len(kws) != 1 || kws[0].Term != "alpha" {
		t.Errorf("expected only alpha at minFreq 2, got %v", kws)
	}
}

func TestFrequencyFiltersWebNoise(t *testing.T) {
	e := NewExtractor()
	kws := e.Frequency("www http https com analysis", 10, 1)
	if len(kws) != 1 {
		t.Fatalf("expected only one keyword, got %v", kws)
	}
	// "analysis" ends in -is and must not be plural-folded.
	if kws[0].Term != "analysis" {
		t.Errorf("expected 'analysis', got %q", kws[0].Term)
	}
}

// --- TF-IDF Tests ---

func TestTFIDFRequiresCorpus(t *testing.T) {
	e := NewExtractor()
	if kws := e.TFIDF("some text here", nil, 5); kws != nil {
		t.Errorf("expected nil without corpus, got %v", kws)
	}
	if kws := e.TFIDF("some text here", []string{"one doc"}, 5); kws != nil {
		t.Errorf("expected nil with single-doc corpus, got %v", kws)
	}
}

func TestTFIDFDocumentFrequencyBounds(t *testing.T) {
	e := NewExtractor()
	corpus := []string{
		"rust memory safety guarantees",
		"rust ownership model explained",
		"rust borrow checker deep dive",
		"gardening tips for spring",
		"unique snowflake appears once",
	}
	target := "rust ownership unique snowflake"

	kws := e.TFIDF(target, corpus, 10)
	terms := map[string]float64{}
	for _, kw := range kws {
		terms[kw.Term] = kw.Score
	}

	// "rust" appears in 3/5 docs: within [2, 0.8*5] -> kept.
	if _, ok := terms["rust"]; !ok {
		t.Error("expected 'rust' to be scored")
	}
	// "unique" and "snowflake" appear in only 1 doc: below min_df -> dropped.
	if _, ok := terms["unique"]; ok {
		t.Error("'unique' is below min_df and should be dropped")
	}
	// Scores are L2-normalised fractions.
	for term, s := range terms {
		if s <= 0 || s > 1 {
			t.Errorf("score for %q out of (0,1]: %v", term, s)
		}
	}
}

func TestTFIDFIncludesBigrams(t *testing.T) {
	e := NewExtractor()
	corpus := []string{
		"machine learning models train slowly",
		"machine learning needs data",
		"cooking pasta needs water",
	}
	kws := e.TFIDF("machine learning rocks", corpus, 10)
	var found bool
	for _, kw := range kws {
		if kw.Term == "machine learning" {
			found = true
		}
	}
	if !found {
		t.Error("expected bigram 'machine learning' in TF-IDF terms")
	}
}

// --- RAKE Tests ---

func TestRAKEPhrases(t *testing.T) {
	e := NewExtractor()
	text := "deep learning is powerful. deep learning can process large datasets, and large datasets are everywhere."

	kws := e.RAKE(text, 10)
	if len(kws) == 0 {
		t.Fatal("expected RAKE phrases")
	}

	byTerm := map[string]float64{}
	for _, kw := range kws {
		byTerm[kw.Term] = kw.Score
	}
	if _, ok := byTerm["large datasets"]; !ok {
		t.Errorf("expected phrase 'large datasets', got %v", kws)
	}
	// Multi-word phrases outrank lone words.
	if byTerm["deep learning"] <= byTerm["powerful"] {
		t.Errorf("phrase should outrank single word: %v vs %v", byTerm["deep learning"], byTerm["powerful"])
	}
}

func TestRAKEMaxPhraseLength(t *testing.T) {
	e := NewExtractor()
	// Five consecutive content words form a run longer than 3 words, which
	// RAKE refuses to treat as a phrase.
	kws := e.RAKE("quantum computing hardware design research", 10)
	if len(kws) != 0 {
		t.Errorf("expected no phrases from an over-long run, got %v", kws)
	}
}

// --- Bigram Tests ---

func TestBigrams(t *testing.T) {
	e := NewExtractor()
	text := "climate change report. climate change impacts. another report."

	kws := e.Bigrams(text, 10, 2)
	if len(kws) != 1 {
		t.Fatalf("expected exactly one bigram at minFreq 2, got %v", kws)
	}
	if kws[0].Term != "climate change" || kws[0].Score != 2 {
		t.Errorf("unexpected bigram: %+v", kws[0])
	}
}

// --- Merge Tests ---

func TestBestMergesStrategies(t *testing.T) {
	e := NewExtractor()
	text := "solar energy storage. solar energy adoption grows. battery storage improves. solar panels everywhere."
	corpus := []string{
		text,
		"solar energy in europe",
		"wind energy overtakes coal",
		"battery technology advances",
	}

	terms := e.Best(text, corpus, 5)
	if len(terms) == 0 {
		t.Fatal("expected merged keywords")
	}
	if len(terms) > 5 {
		t.Errorf("expected at most 5 terms, got %d", len(terms))
	}
	var hasSolar bool
	for _, term := range terms {
		if term == "solar" || term == "solar energy" {
			hasSolar = true
		}
	}
	if !hasSolar {
		t.Errorf("expected a solar term in top keywords, got %v", terms)
	}
}

func TestBestWithoutCorpus(t *testing.T) {
	e := NewExtractor()
	// Degrades to frequency + RAKE + bigrams without error.
	terms := e.Best("kubernetes cluster scaling. kubernetes operators simplify scaling.", nil, 5)
	if len(terms) == 0 {
		t.Fatal("expected keywords without corpus")
	}
}

// --- Benchmarks ---

func BenchmarkBest(b *testing.B) {
	e := NewExtractor()
	text := strings.Repeat("distributed systems need careful design. consensus protocols are subtle. ", 50)
	corpus := []string{text, "raft consensus explained", "paxos made simple", "distributed storage design"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Best(text, corpus, 10)
	}
}
