package services

import (
	"go.uber.org/zap"
)

// Stufen, in denen einzelne Elemente eines Batches scheitern können.
const (
	StageValidate  = "validate"
	StageExtract   = "extract"
	StageClassify  = "classify"
	StagePersist   = "persist"
	StageLinkTag   = "link_tag"
	StageLinkAlias = "link_alias"
	StageResolve   = "resolve"
)

// ItemFailure beschreibt ein einzelnes fehlgeschlagenes Element.
type ItemFailure struct {
	Item  string `json:"item"`
	Stage string `json:"stage"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BatchResult sammelt Erfolge und Einzelfehler eines Batch-Laufs.
type BatchResult struct {
	Succeeded []string      `json:"succeeded"`
	Failures  []ItemFailure `json:"failures"`
}

func (r *BatchResult) fail(log *zap.Logger, item, stage string, err error) {
	r.Failures = append(r.Failures, ItemFailure{Item: item, Stage: stage, Error: err.Error(), Err: err})
	itemFailuresCounter.WithLabelValues(stage).Inc()
	log.Warn("Batch item failed", zap.String("item", item), zap.String("stage", stage), zap.Error(err))
}

// FailureCount gibt die Anzahl fehlgeschlagener Elemente zurück.
func (r *BatchResult) FailureCount() int {
	return len(r.Failures)
}
