package model

import (
	"time"
)

// Document is the registry entry of one ingested record.
// The chunks themselves live in the vector index.
type Document struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	SourceURI string    `json:"source_uri" gorm:"type:varchar(512);not null;index"`
	Scope     string    `json:"scope" gorm:"type:varchar(16);not null"`
	OwnerID   string    `json:"owner_id,omitempty" gorm:"type:varchar(64);index"`
	Hash      string    `json:"hash" gorm:"type:varchar(64);index"` // Content hash for deduplication
	ChunkNum  int       `json:"chunk_num" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "rag_documents"
}
