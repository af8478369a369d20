package models

// Geschlossene Taxonomie für Paper-Tags.
const (
	TagRetrieval  = "Retrieval/RAG"
	TagAgents     = "Agents/Tool Use"
	TagEvaluation = "Evaluation/Benchmarks"
	TagAlignment  = "Alignment/Safety"
	TagMultimodal = "Multimodal"
	TagSystems    = "Systems/Optimization"
	TagOther      = "Other"
)

// MaxTagsPerPaper begrenzt die Anzahl Tags je Paper.
const MaxTagsPerPaper = 3

// Taxonomy listet alle erlaubten Tags.
var Taxonomy = []string{
	TagRetrieval,
	TagAgents,
	TagEvaluation,
	TagAlignment,
	TagMultimodal,
	TagSystems,
	TagOther,
}

// IsValidTag meldet, ob tag Teil der Taxonomie ist.
func IsValidTag(tag string) bool {
	for _, t := range Taxonomy {
		if t == tag {
			return true
		}
	}
	return false
}

// ValidConfidence meldet, ob c im Intervall [0,1] liegt.
func ValidConfidence(c float64) bool {
	return c >= 0 && c <= 1
}
