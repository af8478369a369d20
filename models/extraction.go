package models

// ExtractedEntity ist eine vom Sprachmodell gefundene Entität mit Beleg.
type ExtractedEntity struct {
	Name       string  `json:"name" jsonschema:"description=Entity name as written in the abstract"`
	Evidence   string  `json:"evidence" jsonschema:"description=Short verbatim quote from the abstract"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult enthält die extrahierten Entitäten je Typ.
type ExtractionResult struct {
	Tasks     []ExtractedEntity `json:"tasks"`
	Datasets  []ExtractedEntity `json:"datasets"`
	Methods   []ExtractedEntity `json:"methods"`
	Libraries []ExtractedEntity `json:"libraries"`
}

// ByType liefert die Entitäten gruppiert nach EntityType in fester Reihenfolge.
func (r *ExtractionResult) ByType() map[EntityType][]ExtractedEntity {
	if r == nil {
		return nil
	}
	return map[EntityType][]ExtractedEntity{
		EntityTask:    r.Tasks,
		EntityDataset: r.Datasets,
		EntityMethod:  r.Methods,
		EntityLibrary: r.Libraries,
	}
}

// Count gibt die Gesamtzahl der extrahierten Entitäten zurück.
func (r *ExtractionResult) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Tasks) + len(r.Datasets) + len(r.Methods) + len(r.Libraries)
}

// TagSuggestion ist ein vorgeschlagener Taxonomie-Tag.
type TagSuggestion struct {
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
}

// CanonicalGroup fasst Schreibvarianten unter einem kanonischen Namen zusammen.
type CanonicalGroup struct {
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
}
