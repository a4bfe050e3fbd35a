package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentMetadata carries the descriptive fields extracted by a parser.
type DocumentMetadata struct {
	Title       string     `bson:"title,omitempty" json:"title,omitempty"`
	Author      string     `bson:"author,omitempty" json:"author,omitempty"`
	PublishDate *time.Time `bson:"publish_date,omitempty" json:"publish_date,omitempty"`

	// Language is a BCP 47 tag when the parser could detect one.
	Language string `bson:"language,omitempty" json:"language,omitempty"`

	WordCount int `bson:"word_count" json:"word_count"`

	// Keywords are the extracted ranking terms for this document.
	Keywords []string `bson:"keywords,omitempty" json:"keywords,omitempty"`

	// Custom holds parser-specific fields (platform, score, feed tags, ...).
	Custom map[string]any `bson:"custom,omitempty" json:"custom,omitempty"`
}

// Document is one normalised record produced from one page, feed entry or
// post of a source.
type Document struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// URL locates the page/entry this document came from. (url, source_id)
	// is unique; re-ingesting the same URL for the same source is a no-op.
	URL string `bson:"url" json:"url"`

	SourceID primitive.ObjectID `bson:"source_id" json:"source_id"`

	ContentType ContentType `bson:"content_type" json:"content_type"`

	// RawContent is the decoded text as the parser received it.
	RawContent string `bson:"raw_content" json:"raw_content"`

	// CleanedText is the normalised text the search index covers.
	CleanedText string `bson:"cleaned_text" json:"cleaned_text"`

	Metadata DocumentMetadata `bson:"metadata" json:"metadata"`

	// CrawlConfigSnapshot preserves the source configuration at ingestion
	// time; later config edits do not mutate history.
	CrawlConfigSnapshot CrawlConfig `bson:"crawl_config_snapshot" json:"crawl_config_snapshot"`

	CrawledAt time.Time `bson:"crawled_at" json:"crawled_at"`
}
