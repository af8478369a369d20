package models

import "time"

// EntityType ist der feste Typ einer extrahierten Entität.
type EntityType string

const (
	EntityDataset EntityType = "dataset"
	EntityMethod  EntityType = "method"
	EntityTask    EntityType = "task"
	EntityLibrary EntityType = "library"
)

// EntityTypes listet alle gültigen Typen in Extraktionsreihenfolge.
var EntityTypes = []EntityType{EntityTask, EntityDataset, EntityMethod, EntityLibrary}

// Valid meldet, ob t einer der bekannten Typen ist.
func (t EntityType) Valid() bool {
	switch t {
	case EntityDataset, EntityMethod, EntityTask, EntityLibrary:
		return true
	}
	return false
}

// ParseEntityType wandelt einen String in einen EntityType um.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "entity_type", Reason: "unknown type " + s}
	}
	return t, nil
}

// Entity ist ein benanntes technisches Konzept. CanonicalID verweist auf die
// kanonische Form; das Ziel hat selbst nie eine CanonicalID (genau ein Hop).
type Entity struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name        string     `json:"name" gorm:"not null;uniqueIndex:idx_entities_name_type"`
	Type        EntityType `json:"type" gorm:"not null;size:16;index;uniqueIndex:idx_entities_name_type"`
	CanonicalID *uint      `json:"canonical_id,omitempty" gorm:"index"`
}

// TableName gibt explizit den Tabellennamen an.
func (Entity) TableName() string {
	return "entities"
}

// IsAlias meldet, ob die Entität auf eine kanonische Entität zeigt.
func (e *Entity) IsAlias() bool {
	return e.CanonicalID != nil
}
