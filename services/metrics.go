package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	papersIngestedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radar_papers_ingested_total",
		Help: "Total number of new papers added to the database.",
	})
	entityLinksCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radar_paper_entity_links_total",
		Help: "Total number of new paper-entity links.",
	})
	itemFailuresCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_item_failures_total",
		Help: "Per-item failures in batch operations, by stage.",
	}, []string{"stage"})
	aliasesLinkedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radar_aliases_linked_total",
		Help: "Total number of entities linked to a canonical entity.",
	})
	collaboratorRetriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_collaborator_retries_total",
		Help: "Retries of external collaborator calls after rate limiting.",
	}, []string{"collaborator"})
	digestsGeneratedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radar_digests_generated_total",
		Help: "Total number of generated weekly digests.",
	})
)

func init() {
	prometheus.MustRegister(
		papersIngestedCounter,
		entityLinksCounter,
		itemFailuresCounter,
		aliasesLinkedCounter,
		collaboratorRetriesCounter,
		digestsGeneratedCounter,
	)
}

// withRetryMetric zählt Wiederholungen eines Kollaborators.
func withRetryMetric(p RetryPolicy, collaborator string) RetryPolicy {
	next := p.OnRetry
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		collaboratorRetriesCounter.WithLabelValues(collaborator).Inc()
		if next != nil {
			next(attempt, wait, err)
		}
	}
	return p
}
