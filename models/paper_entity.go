package models

import "time"

// PaperEntity verknüpft ein Paper mit einer Entität samt Beleg (Evidence) und Konfidenz.
// Höchstens eine Zeile pro (PaperID, EntityID); der erste Schreibvorgang gewinnt.
type PaperEntity struct {
	PaperID    uint      `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	EntityID   uint      `json:"entity_id" gorm:"primaryKey;autoIncrement:false;index"`
	Evidence   string    `json:"evidence" gorm:"type:text"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PaperEntity) TableName() string { return "paper_entities" }

// PaperTag verknüpft ein Paper mit einem Taxonomie-Tag.
type PaperTag struct {
	PaperID    uint      `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	Tag        string    `json:"tag" gorm:"primaryKey;size:64"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PaperTag) TableName() string { return "paper_tags" }
