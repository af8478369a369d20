package models

import "time"

// Digest ist ein materialisierter Wochenbericht. Append-only: jede Generierung erzeugt eine neue Zeile.
type Digest struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	WeekStart time.Time `json:"week_start" gorm:"not null;index"`
	WeekEnd   time.Time `json:"week_end" gorm:"not null"`
	ContentMD string    `json:"content_md" gorm:"type:text;not null"`

	// Link auf die archivierte Markdown-Datei im Object Storage (optional)
	ArchiveURL string `json:"archive_url,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Digest) TableName() string {
	return "digests"
}
