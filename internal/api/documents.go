package api

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, 1000)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<30)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sourceID, err := idParam(r, "source_id")
	if err != nil {
		s.writeError(w, err)
		return
	}

	filter := storage.DocumentFilter{
		SourceID: sourceID,
		Limit:    int64(limit),
		Offset:   int64(offset),
	}
	if raw := r.URL.Query().Get("content_type"); raw != "" {
		ct := types.ContentType(raw)
		if !ct.Valid() {
			s.writeError(w, &types.ValidationError{Field: "content_type", Msg: "unknown content type"})
			return
		}
		filter.ContentType = ct
	}

	docs, err := s.store.ListDocuments(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	total, err := s.store.CountDocuments(r.Context(), sourceID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, doc)
}

// searchHit is the wire form of one search result.
type searchHit struct {
	DocumentID  primitive.ObjectID `json:"document_id"`
	URL         string             `json:"url"`
	Title       string             `json:"title,omitempty"`
	Snippet     string             `json:"snippet"`
	Highlighted string             `json:"highlighted,omitempty"`
	Score       float64            `json:"relevance_score"`
	SourceID    primitive.ObjectID `json:"source_id"`
	ContentType types.ContentType  `json:"content_type"`
	CrawledAt   time.Time          `json:"crawled_at"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(r, "limit", 20, 1, 100)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<30)
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

	query := &types.SearchQuery{
		Keywords:    q.Get("q"),
		Operator:    q.Get("operator"),
		SourceID:    sourceID,
		ContentType: types.ContentType(q.Get("content_type")),
		From:        from,
		To:          to,
		Limit:       limit,
		Offset:      offset,
	}

	results, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SearchQueries.Add(1)

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			DocumentID:  res.Document.ID,
			URL:         res.Document.URL,
			Title:       res.Document.Metadata.Title,
			Snippet:     res.Snippet,
			Highlighted: res.Highlighted,
			Score:       res.Score,
			SourceID:    res.Document.SourceID,
			ContentType: res.Document.ContentType,
			CrawledAt:   res.Document.CrawledAt,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"query":         query.Keywords,
		"total_results": len(hits),
		"results":       hits,
		"limit":         query.Limit,
		"offset":        query.Offset,
	})
}
