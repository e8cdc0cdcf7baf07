package commonModels

import "time"

type DocStatus string

const (
	Unprocessed DocStatus = "unprocessed"
	Processed   DocStatus = "processed"
)

// Document is identified by its stem: the file name without directories or extension.
type Document struct {
	Name        string    `json:"doc_name"`
	SourcePath  string    `json:"source_path,omitempty"`
	Status      DocStatus `json:"status"`
	ContentType DocType   `json:"content_type,omitempty"`
}

// PageRecord is one page of extracted text. Index is 0-based.
type PageRecord struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DocChunk is a window of the concatenated document text. Start and End are
// rune offsets, Page is the page holding Start.
type DocChunk struct {
	Document string `json:"doc_name"`
	Text     string `json:"content"`
	Page     int    `json:"page_num"`
	Ordinal  int    `json:"chunk_order"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// ChunkMetadata is persisted next to every vector.
type ChunkMetadata struct {
	Source  string `json:"source"`
	ChunkId string `json:"chunk_id"`
	Page    int    `json:"page"`
	Ordinal int    `json:"ordinal"`
}

// Hit is one query result. Score is cosine similarity, higher is closer.
type Hit struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float32       `json:"score"`
}

// CollectionInfo describes a stored collection.
type CollectionInfo struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var JSON DocType = "JSON"
var ERR DocType = "ERROR"
