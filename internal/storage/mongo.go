package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

const connectTimeout = 10 * time.Second

// Collection names.
const (
	colProjects   = "projects"
	colSources    = "sources"
	colDocuments  = "documents"
	colCrawlStats = "crawl_stats"
)

// MongoStore is the MongoDB-backed Store.
type MongoStore struct {
	client     *mongo.Client
	projects   *mongo.Collection
	sources    *mongo.Collection
	documents  *mongo.Collection
	crawlStats *mongo.Collection
	logger     *slog.Logger
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
func NewMongoStore(uri, database string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(database)
	return &MongoStore{
		client:     client,
		projects:   db.Collection(colProjects),
		sources:    db.Collection(colSources),
		documents:  db.Collection(colDocuments),
		crawlStats: db.Collection(colCrawlStats),
		logger:     logger.With("component", "store"),
	}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.logger.Info("store closing")
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the index set the store depends on: URL uniqueness
// for sources, (url, source_id) uniqueness plus the full-text index for
// documents, and the sort indexes the list queries use.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	groups := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.projects, []mongo.IndexModel{
			{Keys: bson.D{{Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "domain", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		}},
		{s.sources, []mongo.IndexModel{
			{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "project_id", Value: 1}}},
		}},
		{s.documents, []mongo.IndexModel{
			{Keys: bson.D{{Key: "url", Value: 1}, {Key: "source_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "source_id", Value: 1}}},
			{Keys: bson.D{{Key: "crawled_at", Value: -1}}},
			{Keys: bson.D{{Key: "content_type", Value: 1}}},
			{Keys: bson.D{{Key: "cleaned_text", Value: "text"}}},
		}},
		{s.crawlStats, []mongo.IndexModel{
			{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "started_at", Value: -1}}},
		}},
	}

	for _, g := range groups {
		if _, err := g.col.Indexes().CreateMany(ctx, g.models); err != nil {
			return fmt.Errorf("mongodb create indexes on %s: %w", g.col.Name(), err)
		}
	}
	s.logger.Debug("indexes ensured")
	return nil
}

// --- Projects ---

func (s *MongoStore) CreateProject(ctx context.Context, p *types.Project) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Icon == "" {
		p.Icon = types.DefaultProjectIcon
	}

	res, err := s.projects.InsertOne(ctx, p)
	if err != nil {
		return primitive.NilObjectID, &types.StorageError{Op: "create_project", Err: err}
	}
	id := res.InsertedID.(primitive.ObjectID)
	p.ID = id
	s.logger.Debug("project created", "project_id", id.Hex(), "name", p.Name)
	return id, nil
}

func (s *MongoStore) GetProject(ctx context.Context, id primitive.ObjectID) (*types.Project, error) {
	var p types.Project
	err := s.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("project %s: %w", id.Hex(), types.ErrNotFound)
	}
	if err != nil {
		return nil, &types.StorageError{Op: "get_project", Err: err}
	}
	return &p, nil
}

func (s *MongoStore) ListProjects(ctx context.Context, limit, offset int64) ([]*types.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.projects.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, &types.StorageError{Op: "list_projects", Err: err}
	}
	var projects []*types.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, &types.StorageError{Op: "list_projects", Err: err}
	}
	return projects, nil
}

func (s *MongoStore) UpdateProject(ctx context.Context, id primitive.ObjectID, upd ProjectUpdate) error {
	set := projectUpdateDoc(upd)
	if len(set) == 0 {
		return &types.ValidationError{Field: "update", Msg: "no fields to update"}
	}
	set["updated_at"] = time.Now().UTC()

	res, err := s.projects.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return &types.StorageError{Op: "update_project", Err: err}
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("project %s: %w", id.Hex(), types.ErrNotFound)
	}
	return nil
}

// DeleteProject removes the project, its sources, and every document and
// crawl-stats record those sources produced.
func (s *MongoStore) DeleteProject(ctx context.Context, id primitive.ObjectID) error {
	err := s.projects.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("project %s: %w", id.Hex(), types.ErrNotFound)
	}
	if err != nil {
		return &types.StorageError{Op: "delete_project", Err: err}
	}

	sourceIDs, err := s.sources.Distinct(ctx, "_id", bson.M{"project_id": id})
	if err != nil {
		return &types.StorageError{Op: "delete_project", Err: err}
	}

	var docsRemoved, statsRemoved int64
	if len(sourceIDs) > 0 {
		owned := bson.M{"source_id": bson.M{"$in": sourceIDs}}
		docs, err := s.documents.DeleteMany(ctx, owned)
		if err != nil {
			return &types.StorageError{Op: "delete_project", Err: err}
		}
		docsRemoved = docs.DeletedCount

		stats, err := s.crawlStats.DeleteMany(ctx, owned)
		if err != nil {
			return &types.StorageError{Op: "delete_project", Err: err}
		}
		statsRemoved = stats.DeletedCount

		if _, err := s.sources.DeleteMany(ctx, bson.M{"project_id": id}); err != nil {
			return &types.StorageError{Op: "delete_project", Err: err}
		}
	}

	if _, err := s.projects.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return &types.StorageError{Op: "delete_project", Err: err}
	}

	s.logger.Info("project deleted",
		"project_id", id.Hex(),
		"sources", len(sourceIDs),
		"documents", docsRemoved,
		"crawl_stats", statsRemoved)
	return nil
}

// --- Sources ---

func (s *MongoStore) CreateSource(ctx context.Context, src *types.Source) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now
	if src.Status == "" {
		src.Status = types.StatusIdle
	}

	res, err := s.sources.InsertOne(ctx, src)
	if mongo.IsDuplicateKeyError(err) {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", types.ErrDuplicateURL, src.URL)
	}
	if err != nil {
		return primitive.NilObjectID, &types.StorageError{Op: "create_source", Err: err}
	}
	id := res.InsertedID.(primitive.ObjectID)
	src.ID = id
	s.logger.Debug("source created", "source_id", id.Hex(), "url", src.URL)
	return id, nil
}

func (s *MongoStore) GetSource(ctx context.Context, id primitive.ObjectID) (*types.Source, error) {
	var src types.Source
	err := s.sources.FindOne(ctx, bson.M{"_id": id}).Decode(&src)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("source %s: %w", id.Hex(), types.ErrNotFound)
	}
	if err != nil {
		return nil, &types.StorageError{Op: "get_source", Err: err}
	}
	return &src, nil
}

func (s *MongoStore) ListSources(ctx context.Context, f SourceFilter) ([]*types.Source, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(f.Offset)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := s.sources.Find(ctx, sourceFilterQuery(f), opts)
	if err != nil {
		return nil, &types.StorageError{Op: "list_sources", Err: err}
	}
	var sources []*types.Source
	if err := cursor.All(ctx, &sources); err != nil {
		return nil, &types.StorageError{Op: "list_sources", Err: err}
	}
	return sources, nil
}

func (s *MongoStore) UpdateSource(ctx context.Context, id primitive.ObjectID, upd SourceUpdate) error {
	set := sourceUpdateDoc(upd)
	if len(set) == 0 {
		return &types.ValidationError{Field: "update", Msg: "no fields to update"}
	}
	set["updated_at"] = time.Now().UTC()

	res, err := s.sources.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", types.ErrDuplicateURL, upd.URL)
	}
	if err != nil {
		return &types.StorageError{Op: "update_source", Err: err}
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("source %s: %w", id.Hex(), types.ErrNotFound)
	}
	return nil
}

// DeleteSource removes the source plus its documents and crawl stats.
func (s *MongoStore) DeleteSource(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.sources.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return &types.StorageError{Op: "delete_source", Err: err}
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("source %s: %w", id.Hex(), types.ErrNotFound)
	}

	owned := bson.M{"source_id": id}
	docs, err := s.documents.DeleteMany(ctx, owned)
	if err != nil {
		return &types.StorageError{Op: "delete_source", Err: err}
	}
	if _, err := s.crawlStats.DeleteMany(ctx, owned); err != nil {
		return &types.StorageError{Op: "delete_source", Err: err}
	}

	s.logger.Info("source deleted", "source_id", id.Hex(), "documents", docs.DeletedCount)
	return nil
}

func (s *MongoStore) UpdateSourceStatus(ctx context.Context, id primitive.ObjectID, status types.SourceStatus) error {
	res, err := s.sources.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return &types.StorageError{Op: "update_source_status", Err: err}
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("source %s: %w", id.Hex(), types.ErrNotFound)
	}
	return nil
}

// MarkSourceRunning is the compare-and-set that starts a run: it only
// matches when the source is not already running, so two overlapping
// triggers cannot both claim it.
func (s *MongoStore) MarkSourceRunning(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.sources.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": types.StatusRunning}},
		bson.M{"$set": bson.M{
			"status":     types.StatusRunning,
			"last_crawl": now,
			"updated_at": now,
		}})
	if err != nil {
		return &types.StorageError{Op: "mark_source_running", Err: err}
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetSource(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("source %s: %w", id.Hex(), types.ErrCrawlActive)
	}
	return nil
}

// FinishSource closes out a run: the guard on status=running means a source
// deleted mid-run surfaces as not found instead of being resurrected.
func (s *MongoStore) FinishSource(ctx context.Context, id primitive.ObjectID, status types.SourceStatus, lastError string, docsDelta int64) error {
	res, err := s.sources.UpdateOne(ctx,
		bson.M{"_id": id, "status": types.StatusRunning},
		bson.M{
			"$set": bson.M{
				"status":     status,
				"last_error": lastError,
				"updated_at": time.Now().UTC(),
			},
			"$inc": bson.M{"total_documents": docsDelta},
		})
	if err != nil {
		return &types.StorageError{Op: "finish_source", Err: err}
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("running source %s: %w", id.Hex(), types.ErrNotFound)
	}
	return nil
}

// ReconcileStaleRunning fails every source left in running state. Called at
// startup, before the scheduler begins firing jobs.
func (s *MongoStore) ReconcileStaleRunning(ctx context.Context) (int64, error) {
	res, err := s.sources.UpdateMany(ctx,
		bson.M{"status": types.StatusRunning},
		bson.M{"$set": bson.M{
			"status":     types.StatusFailed,
			"last_error": "crawl interrupted by restart",
			"updated_at": time.Now().UTC(),
		}})
	if err != nil {
		return 0, &types.StorageError{Op: "reconcile_stale_running", Err: err}
	}
	if res.ModifiedCount > 0 {
		s.logger.Warn("stale running sources reconciled", "count", res.ModifiedCount)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) SourceStatusCounts(ctx context.Context) (map[types.SourceStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.sources.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &types.StorageError{Op: "source_status_counts", Err: err}
	}
	var rows []struct {
		Status types.SourceStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, &types.StorageError{Op: "source_status_counts", Err: err}
	}

	counts := make(map[types.SourceStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// --- Documents ---

// CreateDocument inserts a document, stamping crawled_at when unset. A
// (url, source_id) collision is the expected re-crawl path and reports
// stored=false without an error.
func (s *MongoStore) CreateDocument(ctx context.Context, doc *types.Document) (primitive.ObjectID, bool, error) {
	if doc.CrawledAt.IsZero() {
		doc.CrawledAt = time.Now().UTC()
	}

	res, err := s.documents.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		s.logger.Debug("duplicate document skipped", "url", doc.URL, "source_id", doc.SourceID.Hex())
		return primitive.NilObjectID, false, nil
	}
	if err != nil {
		return primitive.NilObjectID, false, &types.StorageError{Op: "create_document", Err: err}
	}
	id := res.InsertedID.(primitive.ObjectID)
	doc.ID = id
	return id, true, nil
}

func (s *MongoStore) GetDocument(ctx context.Context, id primitive.ObjectID) (*types.Document, error) {
	var doc types.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("document %s: %w", id.Hex(), types.ErrNotFound)
	}
	if err != nil {
		return nil, &types.StorageError{Op: "get_document", Err: err}
	}
	return &doc, nil
}

func (s *MongoStore) ListDocuments(ctx context.Context, f DocumentFilter) ([]*types.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "crawled_at", Value: -1}}).SetSkip(f.Offset)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := s.documents.Find(ctx, documentFilterQuery(f), opts)
	if err != nil {
		return nil, &types.StorageError{Op: "list_documents", Err: err}
	}
	var docs []*types.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &types.StorageError{Op: "list_documents", Err: err}
	}
	return docs, nil
}

func (s *MongoStore) CountDocuments(ctx context.Context, sourceID *primitive.ObjectID) (int64, error) {
	filter := bson.M{}
	if sourceID != nil {
		filter["source_id"] = *sourceID
	}
	n, err := s.documents.CountDocuments(ctx, filter)
	if err != nil {
		return 0, &types.StorageError{Op: "count_documents", Err: err}
	}
	return n, nil
}

// --- Search ---

// searchHit decodes one full-text result with its textScore projection.
type searchHit struct {
	types.Document `bson:",inline"`
	Score          float64 `bson:"score"`
}

// SearchDocuments runs the keyword string against the text index, scoping
// by the query's source, content-type and time filters. Keywords are passed
// through verbatim; operator rewriting happens in the search engine.
func (s *MongoStore) SearchDocuments(ctx context.Context, q *types.SearchQuery) ([]*types.SearchResult, error) {
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	cursor, err := s.documents.Find(ctx, searchFilterQuery(q), opts)
	if err != nil {
		return nil, &types.StorageError{Op: "search_documents", Err: err}
	}
	var hits []searchHit
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, &types.StorageError{Op: "search_documents", Err: err}
	}

	results := make([]*types.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = &types.SearchResult{Document: h.Document, Score: h.Score}
	}
	s.logger.Debug("search executed", "keywords", q.Keywords, "hits", len(results))
	return results, nil
}

// --- Crawl Stats ---

func (s *MongoStore) SaveCrawlStats(ctx context.Context, stats *types.CrawlStats) (primitive.ObjectID, error) {
	res, err := s.crawlStats.InsertOne(ctx, stats)
	if err != nil {
		return primitive.NilObjectID, &types.StorageError{Op: "save_crawl_stats", Err: err}
	}
	id := res.InsertedID.(primitive.ObjectID)
	stats.ID = id
	return id, nil
}

func (s *MongoStore) GetSourceStats(ctx context.Context, sourceID primitive.ObjectID) (*SourceStats, error) {
	total, err := s.CountDocuments(ctx, &sourceID)
	if err != nil {
		return nil, err
	}

	out := &SourceStats{SourceID: sourceID, TotalDocuments: total}

	var latest types.CrawlStats
	err = s.crawlStats.FindOne(ctx, bson.M{"source_id": sourceID},
		options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})).Decode(&latest)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		// Never crawled.
	case err != nil:
		return nil, &types.StorageError{Op: "get_source_stats", Err: err}
	default:
		out.LatestRun = &latest
	}
	return out, nil
}

func (s *MongoStore) GetGlobalStats(ctx context.Context) (*types.GlobalStats, error) {
	stats := &types.GlobalStats{DocumentsByType: make(map[string]int64)}

	var err error
	if stats.TotalProjects, err = s.projects.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, &types.StorageError{Op: "global_stats", Err: err}
	}
	if stats.TotalSources, err = s.sources.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, &types.StorageError{Op: "global_stats", Err: err}
	}
	if stats.TotalDocuments, err = s.documents.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, &types.StorageError{Op: "global_stats", Err: err}
	}

	byType, err := s.documents.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$content_type"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, &types.StorageError{Op: "global_stats", Err: err}
	}
	var typeRows []struct {
		ContentType string `bson:"_id"`
		Count       int64  `bson:"count"`
	}
	if err := byType.All(ctx, &typeRows); err != nil {
		return nil, &types.StorageError{Op: "global_stats", Err: err}
	}
	for _, row := range typeRows {
		stats.DocumentsByType[row.ContentType] = row.Count
	}

	top, err := s.documents.Aggregate(ctx, topSourcesPipeline(10))
	if err != nil {
		return nil, &types.StorageError{Op: "global_stats", Err: err}
	}
	if err := top.All(ctx, &stats.TopSources); err != nil {
		return nil, &types.StorageError{Op: "global_stats", Err: err}
	}

	return stats, nil
}

// topSourcesPipeline groups documents by source, keeps the n largest, and
// joins the source name in.
func topSourcesPipeline(n int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$source_id"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: n}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: colSources},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "source"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "name", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$source.name", 0}}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "source", Value: 0}}}},
	}
}

// CrawlTimeline buckets crawl runs from the last days by calendar day,
// oldest first.
func (s *MongoStore) CrawlTimeline(ctx context.Context, days int) ([]TimelineBucket, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "started_at", Value: bson.D{{Key: "$gte", Value: since}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$started_at"},
			}}}},
			{Key: "runs", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "pages_crawled", Value: bson.D{{Key: "$sum", Value: "$pages_crawled"}}},
			{Key: "pages_failed", Value: bson.D{{Key: "$sum", Value: "$pages_failed"}}},
			{Key: "bytes_downloaded", Value: bson.D{{Key: "$sum", Value: "$bytes_downloaded"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := s.crawlStats.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &types.StorageError{Op: "crawl_timeline", Err: err}
	}
	var buckets []TimelineBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, &types.StorageError{Op: "crawl_timeline", Err: err}
	}
	return buckets, nil
}

// --- Query Builders ---

func sourceFilterQuery(f SourceFilter) bson.M {
	filter := bson.M{}
	if f.Status != nil {
		filter["status"] = *f.Status
	}
	if f.ProjectID != nil {
		filter["project_id"] = *f.ProjectID
	}
	if f.Enabled != nil {
		filter["crawl_config.enabled"] = *f.Enabled
	}
	return filter
}

func documentFilterQuery(f DocumentFilter) bson.M {
	filter := bson.M{}
	if f.SourceID != nil {
		filter["source_id"] = *f.SourceID
	}
	if f.ContentType != "" {
		filter["content_type"] = f.ContentType
	}
	return filter
}

func searchFilterQuery(q *types.SearchQuery) bson.M {
	filter := bson.M{"$text": bson.M{"$search": q.Keywords}}
	if q.SourceID != nil {
		filter["source_id"] = *q.SourceID
	}
	if q.ContentType != "" {
		filter["content_type"] = q.ContentType
	}
	crawled := bson.M{}
	if q.From != nil {
		crawled["$gte"] = *q.From
	}
	if q.To != nil {
		crawled["$lte"] = *q.To
	}
	if len(crawled) > 0 {
		filter["crawled_at"] = crawled
	}
	return filter
}

func projectUpdateDoc(upd ProjectUpdate) bson.M {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Domain != nil {
		set["domain"] = *upd.Domain
	}
	if upd.Keywords != nil {
		set["keywords"] = *upd.Keywords
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Icon != nil {
		set["icon"] = *upd.Icon
	}
	return set
}

func sourceUpdateDoc(upd SourceUpdate) bson.M {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.URL != nil {
		set["url"] = *upd.URL
	}
	if upd.SourceType != nil {
		set["source_type"] = *upd.SourceType
	}
	if upd.ContentType != nil {
		set["content_type"] = *upd.ContentType
	}
	if upd.CrawlConfig != nil {
		set["crawl_config"] = *upd.CrawlConfig
	}
	if upd.ProjectID != nil {
		set["project_id"] = *upd.ProjectID
	}
	return set
}
