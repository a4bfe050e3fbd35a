package search

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeSearcher struct {
	gotQuery *types.SearchQuery
	results  []*types.SearchResult
	err      error
}

func (f *fakeSearcher) SearchDocuments(_ context.Context, q *types.SearchQuery) ([]*types.SearchResult, error) {
	f.gotQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// --- Engine Tests ---

func TestSearchQuotesANDTerms(t *testing.T) {
	fake := &fakeSearcher{}
	eng := NewEngine(fake, testLogger)

	q := &types.SearchQuery{Keywords: "solar battery"}
	if _, err := eng.Search(context.Background(), q); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got := fake.gotQuery.Keywords; got != `"solar" "battery"` {
		t.Errorf("executed keywords = %q, want every term quoted", got)
	}
	if q.Keywords != "solar battery" {
		t.Errorf("caller's keywords mutated to %q", q.Keywords)
	}
	if q.Operator != types.OperatorAND {
		t.Errorf("operator = %q, want AND default applied", q.Operator)
	}
}

func TestSearchLeavesORTermsUnquoted(t *testing.T) {
	fake := &fakeSearcher{}
	eng := NewEngine(fake, testLogger)

	q := &types.SearchQuery{Keywords: "solar  battery   grid", Operator: types.OperatorOR}
	if _, err := eng.Search(context.Background(), q); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got := fake.gotQuery.Keywords; got != "solar battery grid" {
		t.Errorf("executed keywords = %q, want space-joined terms", got)
	}
}

func TestSearchSingleTermStaysBare(t *testing.T) {
	fake := &fakeSearcher{}
	eng := NewEngine(fake, testLogger)

	if _, err := eng.Search(context.Background(), &types.SearchQuery{Keywords: "solar"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := fake.gotQuery.Keywords; got != "solar" {
		t.Errorf("executed keywords = %q, want the bare term so stemming applies", got)
	}
}

func TestSearchDecoratesHits(t *testing.T) {
	fake := &fakeSearcher{results: []*types.SearchResult{
		{
			Document: types.Document{
				CleanedText: "Rooftop solar adoption is accelerating across the region as panel prices fall.",
			},
			Score: 1.25,
		},
	}}
	eng := NewEngine(fake, testLogger)

	results, err := eng.Search(context.Background(), &types.SearchQuery{Keywords: "solar"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if !strings.Contains(r.Snippet, "solar") {
		t.Errorf("snippet %q does not contain the query term", r.Snippet)
	}
	if !strings.Contains(r.Highlighted, "<mark>solar</mark>") {
		t.Errorf("highlighted %q does not wrap the query term", r.Highlighted)
	}
	if r.Score != 1.25 {
		t.Errorf("score = %v, want preserved", r.Score)
	}
}

func TestSearchRejectsInvalidQueries(t *testing.T) {
	eng := NewEngine(&fakeSearcher{}, testLogger)

	cases := []struct {
		name string
		q    *types.SearchQuery
	}{
		{"empty keywords", &types.SearchQuery{Keywords: "   "}},
		{"unknown operator", &types.SearchQuery{Keywords: "x", Operator: "XOR"}},
		{"limit too large", &types.SearchQuery{Keywords: "x", Limit: 500}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.Search(context.Background(), tc.q)
			var verr *types.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestSearchPropagatesStoreErrors(t *testing.T) {
	wantErr := errors.New("index offline")
	eng := NewEngine(&fakeSearcher{err: wantErr}, testLogger)

	_, err := eng.Search(context.Background(), &types.SearchQuery{Keywords: "solar"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want store error passed through", err)
	}
}

// --- Snippet Tests ---

func TestSnippetEmptyText(t *testing.T) {
	if got := Snippet("", []string{"solar"}, 200); got != "" {
		t.Errorf("Snippet on empty text = %q, want empty", got)
	}
}

func TestSnippetShortTextNoMatch(t *testing.T) {
	text := "short body with nothing relevant"
	if got := Snippet(text, []string{"solar"}, 200); got != text {
		t.Errorf("short unmatched text should come back verbatim, got %q", got)
	}
}

func TestSnippetLongTextNoMatchReturnsHead(t *testing.T) {
	text := strings.Repeat("a", 250)
	got := Snippet(text, []string{"solar"}, 200)
	if got != strings.Repeat("a", 200)+"..." {
		t.Errorf("unmatched long text: got %d bytes %q...", len(got), got[:20])
	}
}

func TestSnippetCentresOnMatch(t *testing.T) {
	text := strings.Repeat("a", 300) + " solar " + strings.Repeat("b", 300)
	got := Snippet(text, []string{"solar"}, 200)

	if !strings.Contains(got, "solar") {
		t.Fatalf("snippet %q lost the matched term", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("mid-text match should be ellipsised on both ends: %q", got)
	}
	if len(got) > 200+len("...")*2+len("solar") {
		t.Errorf("snippet too long: %d bytes", len(got))
	}
}

func TestSnippetMatchAtStart(t *testing.T) {
	text := "solar " + strings.Repeat("b", 400)
	got := Snippet(text, []string{"solar"}, 200)

	if strings.HasPrefix(got, "...") {
		t.Errorf("match at start must not get a leading ellipsis: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated tail must be ellipsised: %q", got)
	}
}

func TestSnippetEarliestTermWins(t *testing.T) {
	text := "alpha " + strings.Repeat("x", 400) + " beta"
	got := Snippet(text, []string{"beta", "alpha"}, 200)

	if !strings.Contains(got, "alpha") {
		t.Errorf("snippet should centre on the earliest term: %q", got)
	}
	if strings.Contains(got, "beta") {
		t.Errorf("later term is outside the window and should be cut: %q", got)
	}
}

func TestSnippetMatchIsCaseInsensitive(t *testing.T) {
	text := strings.Repeat("a", 300) + " SOLAR " + strings.Repeat("b", 300)
	got := Snippet(text, []string{"solar"}, 200)
	if !strings.Contains(got, "SOLAR") {
		t.Errorf("case-insensitive match failed: %q", got)
	}
}

func TestSnippetRespectsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 101) + "needle" + strings.Repeat("é", 101)
	got := Snippet(text, []string{"needle"}, 199)

	if !utf8.ValidString(got) {
		t.Fatalf("snippet split a rune: %q", got)
	}
	if !strings.Contains(got, "needle") {
		t.Errorf("snippet lost the matched term: %q", got)
	}

	head := Snippet(strings.Repeat("é", 150), []string{"zzz"}, 99)
	if !utf8.ValidString(head) {
		t.Fatalf("head truncation split a rune: %q", head)
	}
}

// --- Highlight Tests ---

func TestHighlightPreservesCase(t *testing.T) {
	got := Highlight("Solar panels and SOLAR farms", []string{"solar"})
	want := "<mark>Solar</mark> panels and <mark>SOLAR</mark> farms"
	if got != want {
		t.Errorf("Highlight = %q, want %q", got, want)
	}
}

func TestHighlightSkipsSingleCharacterTerms(t *testing.T) {
	text := "a cat sat"
	if got := Highlight(text, []string{"a"}); got != text {
		t.Errorf("single-character term must not be wrapped: %q", got)
	}
}

func TestHighlightEscapesRegexMetacharacters(t *testing.T) {
	got := Highlight("teams using c++ daily", []string{"c++"})
	if got != "teams using <mark>c++</mark> daily" {
		t.Errorf("Highlight = %q", got)
	}
}

func TestHighlightMultipleTerms(t *testing.T) {
	got := Highlight("solar and battery", []string{"solar", "battery"})
	if !strings.Contains(got, "<mark>solar</mark>") || !strings.Contains(got, "<mark>battery</mark>") {
		t.Errorf("Highlight = %q, want both terms wrapped", got)
	}
}

// --- Benchmarks ---

func BenchmarkSnippet(b *testing.B) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 100)
	terms := []string{"lazy", "fox"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Snippet(text, terms, 200)
	}
}

func BenchmarkHighlight(b *testing.B) {
	text := strings.Repeat("solar output rose while battery costs fell ", 10)
	terms := []string{"solar", "battery"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Highlight(text, terms)
	}
}
