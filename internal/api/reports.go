package api

import (
	"net/http"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Report queries walk at most this many records per request.
const reportScanLimit = 1000

// keywordsPerDocument bounds the per-document extraction feeding the
// frequency aggregate.
const keywordsPerDocument = 50

type keywordFrequency struct {
	Keyword   string `json:"keyword"`
	Frequency int    `json:"frequency"`
}

type sourceSummary struct {
	SourceID      primitive.ObjectID `json:"source_id"`
	SourceName    string             `json:"source_name"`
	DocumentCount int64              `json:"document_count"`
	LastCrawl     *time.Time         `json:"last_crawl"`
}

type contentTypeCount struct {
	ContentType string `json:"content_type"`
	Count       int64  `json:"count"`
}

type blockedSource struct {
	Name        string            `json:"name"`
	ContentType types.ContentType `json:"content_type"`
	Error       string            `json:"error"`
}

func (s *Server) handleKeywordFrequency(w http.ResponseWriter, r *http.Request) {
	topN, err := intParam(r, "top_n", 20, 1, 100)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sourceID, err := idParam(r, "source_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	from, err := timeParam(r, "date_from")
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := timeParam(r, "date_to")
	if err != nil {
		s.writeError(w, err)
		return
	}

	docs, err := s.store.ListDocuments(r.Context(), storage.DocumentFilter{
		SourceID: sourceID,
		Limit:    reportScanLimit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	counts := make(map[string]int)
	for _, doc := range docs {
		if from != nil && doc.CrawledAt.Before(*from) {
			continue
		}
		if to != nil && doc.CrawledAt.After(*to) {
			continue
		}
		for _, kw := range s.extractor.Frequency(doc.CleanedText, keywordsPerDocument, 1) {
			counts[kw.Term]++
		}
	}

	ranked := make([]keywordFrequency, 0, len(counts))
	for term, n := range counts {
		ranked = append(ranked, keywordFrequency{Keyword: term, Frequency: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return ranked[i].Keyword < ranked[j].Keyword
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	s.jsonResponse(w, http.StatusOK, ranked)
}

func (s *Server) handleSourceSummary(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context(), storage.SourceFilter{Limit: reportScanLimit})
	if err != nil {
		s.writeError(w, err)
		return
	}

	summary := make([]sourceSummary, 0, len(sources))
	for _, src := range sources {
		summary = append(summary, sourceSummary{
			SourceID:      src.ID,
			SourceName:    src.Name,
			DocumentCount: src.TotalDocuments,
			LastCrawl:     src.LastCrawl,
		})
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

func (s *Server) handleCrawlTimeline(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 30, 1, 365)
	if err != nil {
		s.writeError(w, err)
		return
	}

	timeline, err := s.store.CrawlTimeline(r.Context(), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, timeline)
}

func (s *Server) handleContentTypeDistribution(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetGlobalStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	dist := make([]contentTypeCount, 0, len(stats.DocumentsByType))
	for ct, n := range stats.DocumentsByType {
		dist = append(dist, contentTypeCount{ContentType: ct, Count: n})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].ContentType < dist[j].ContentType
	})
	s.jsonResponse(w, http.StatusOK, dist)
}

func (s *Server) handleBlockingStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.SourceStatusCounts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	blockedStatus := types.StatusBlocked
	blocked, err := s.store.ListSources(r.Context(), storage.SourceFilter{
		Status: &blockedStatus,
		Limit:  reportScanLimit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	blockedList := make([]blockedSource, 0, len(blocked))
	for _, src := range blocked {
		reason := src.LastError
		if reason == "" {
			reason = "Unknown"
		}
		blockedList = append(blockedList, blockedSource{
			Name:        src.Name,
			ContentType: src.ContentType,
			Error:       reason,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"total":           total,
		"blocked":         counts[types.StatusBlocked],
		"healthy":         counts[types.StatusIdle] + counts[types.StatusCompleted],
		"running":         counts[types.StatusRunning],
		"failed":          counts[types.StatusFailed],
		"blocked_sources": blockedList,
	})
}
