package models

import (
	"time"

	"gorm.io/datatypes"
)

// Paper repräsentiert ein arXiv-Paper und dessen Metadaten.
// Nach dem Anlegen unveränderlich; erneuter Import mit derselben ArxivID ist ein No-op.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ArxivID     string                      `json:"arxiv_id" gorm:"column:arxiv_id;uniqueIndex;not null"`
	Title       string                      `json:"title" gorm:"not null"`
	Abstract    string                      `json:"abstract,omitempty" gorm:"type:text"`
	Authors     datatypes.JSONSlice[string] `json:"authors"`
	PublishedAt time.Time                   `json:"published_at" gorm:"index"`
	Categories  datatypes.JSONSlice[string] `json:"categories"`
	URL         string                      `json:"url,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}
