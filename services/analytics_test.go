package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekStart(t *testing.T) {
	assert.Equal(t, day(2026, 1, 5), WeekStart(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, day(2026, 1, 5), WeekStart(time.Date(2026, 1, 7, 13, 4, 0, 0, time.UTC)))
	assert.Equal(t, day(2026, 1, 5), WeekStart(time.Date(2026, 1, 11, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, day(2026, 1, 12), WeekStart(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)))
	// Sonntag 23:30 in UTC-5 ist Montag 04:30 UTC
	ny := time.FixedZone("EST", -5*3600)
	assert.Equal(t, day(2026, 1, 12), WeekStart(time.Date(2026, 1, 11, 23, 30, 0, 0, ny)))
}

func TestAnalytics_TopEntitiesByWeek_HalfOpenWindow(t *testing.T) {
	env := newTestEnv(t)
	weekStart := day(2026, 1, 5)

	env.addPaper(t, "before", weekStart.Add(-24*time.Hour), models.EntityMethod, "Early Method")
	env.addPaper(t, "at-start", weekStart, models.EntityMethod, "Start Method")
	env.addPaper(t, "at-end", weekStart.Add(7*24*time.Hour), models.EntityMethod, "Late Method")

	got, err := env.analytics(weekStart).TopEntitiesByWeek(context.Background(), weekStart, models.EntityMethod, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Start Method", got[0].Name)
	assert.Equal(t, int64(1), got[0].Count)
}

func TestAnalytics_TopEntitiesByWeek_OrderAndLimit(t *testing.T) {
	env := newTestEnv(t)
	weekStart := day(2026, 1, 5)
	at := weekStart.Add(36 * time.Hour)

	env.addPaper(t, "p1", at, models.EntityMethod, "LoRA", "DPO", "Transformer")
	env.addPaper(t, "p2", at, models.EntityMethod, "LoRA", "DPO")
	env.addPaper(t, "p3", at, models.EntityMethod, "LoRA")
	env.addPaper(t, "p4", at, models.EntityDataset, "MMLU")

	got, err := env.analytics(weekStart).TopEntitiesByWeek(context.Background(), weekStart, models.EntityMethod, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "LoRA", got[0].Name)
	assert.Equal(t, int64(3), got[0].Count)
	assert.Equal(t, "DPO", got[1].Name)

	all, err := env.analytics(weekStart).TopEntitiesByWeek(context.Background(), weekStart, models.EntityMethod, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAnalytics_FastestGrowingEntities(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	thisWeek := now.Add(-2 * 24 * time.Hour)
	lastWeek := now.Add(-9 * 24 * time.Hour)

	for i := 0; i < 5; i++ {
		env.addPaper(t, fmt.Sprintf("x-this-%d", i), thisWeek, models.EntityMethod, "X")
		env.addPaper(t, fmt.Sprintf("y-this-%d", i), thisWeek, models.EntityMethod, "Y")
	}
	for i := 0; i < 2; i++ {
		env.addPaper(t, fmt.Sprintf("x-last-%d", i), lastWeek, models.EntityMethod, "X")
	}
	// nur in der Vorwoche aktiv: taucht nicht auf
	env.addPaper(t, "z-last", lastWeek, models.EntityMethod, "Z")

	got, err := env.analytics(now).FastestGrowingEntities(context.Background(), models.EntityMethod)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Y", got[0].Name)
	assert.Equal(t, int64(5), got[0].Growth)
	assert.Equal(t, int64(0), got[0].LastWeek)

	assert.Equal(t, "X", got[1].Name)
	assert.Equal(t, int64(3), got[1].Growth)
	assert.Equal(t, int64(5), got[1].ThisWeek)
	assert.Equal(t, int64(2), got[1].LastWeek)
}

func TestAnalytics_FastestGrowingEntities_NegativeGrowth(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	env.addPaper(t, "a1", now.Add(-time.Hour), models.EntityTask, "QA")
	for i := 0; i < 3; i++ {
		env.addPaper(t, fmt.Sprintf("a-last-%d", i), now.Add(-8*24*time.Hour), models.EntityTask, "QA")
	}

	got, err := env.analytics(now).FastestGrowingEntities(context.Background(), models.EntityTask)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(-2), got[0].Growth)
}

func TestAnalytics_EntityCooccurrenceEdges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	p1 := env.addPaper(t, "p1", now.Add(-24*time.Hour), models.EntityMethod, "A", "B")
	// A zweimal auf demselben Paper erzeugt keine Selbstkante
	a, err := env.entities.FindByNameAndType(ctx, "A", models.EntityMethod)
	require.NoError(t, err)
	_, created, err := env.relations.LinkPaperEntity(ctx, p1.ID, a.ID, "again", 0.5)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := env.analytics(now).EntityCooccurrenceEdges(ctx, models.EntityMethod, 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].EntityA)
	assert.Equal(t, "B", got[0].EntityB)
	assert.Less(t, got[0].EntityAID, got[0].EntityBID)
	assert.Equal(t, int64(1), got[0].Count)
}

func TestAnalytics_EntityCooccurrenceEdges_WindowAndType(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	env.addPaper(t, "recent-1", now.Add(-2*24*time.Hour), models.EntityMethod, "RAG", "BM25", "DPR")
	env.addPaper(t, "recent-2", now.Add(-3*24*time.Hour), models.EntityMethod, "RAG", "BM25")
	env.addPaper(t, "old", now.Add(-20*24*time.Hour), models.EntityMethod, "RAG", "DPR")
	env.addPaper(t, "future", now, models.EntityMethod, "RAG", "DPR")
	env.addPaper(t, "datasets", now.Add(-time.Hour), models.EntityDataset, "NQ", "TriviaQA")

	got, err := env.analytics(now).EntityCooccurrenceEdges(context.Background(), models.EntityMethod, 7)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Count)
	assert.ElementsMatch(t, []string{"RAG", "BM25"}, []string{got[0].EntityA, got[0].EntityB})
	for _, e := range got[1:] {
		assert.Equal(t, int64(1), e.Count)
	}

	wide, err := env.analytics(now).EntityCooccurrenceEdges(context.Background(), models.EntityMethod, 0)
	require.NoError(t, err)
	for _, e := range wide {
		if (e.EntityA == "RAG" && e.EntityB == "DPR") || (e.EntityA == "DPR" && e.EntityB == "RAG") {
			assert.Equal(t, int64(2), e.Count)
		}
	}
}

func TestAnalytics_PapersForEntity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addPaper(t, "older", day(2026, 1, 1), models.EntityLibrary, "PyTorch")
	env.addPaper(t, "newer", day(2026, 1, 20), models.EntityLibrary, "PyTorch")

	e, err := env.entities.FindByName(ctx, "PyTorch")
	require.NoError(t, err)

	got, err := env.analytics(time.Now()).PapersForEntity(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].Paper.ArxivID)
	assert.Equal(t, "mentions PyTorch", got[0].Evidence)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, "older", got[1].Paper.ArxivID)

	_, err = env.analytics(time.Now()).PapersForEntity(ctx, 4711)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestAnalytics_CategoryDistributionOverTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	add := func(id string, published time.Time, cats ...string) {
		_, _, err := env.relations.UpsertPaper(ctx, models.PaperRecord{ExternalID: id, Title: id, PublishedAt: published, Categories: cats})
		require.NoError(t, err)
	}
	add("a", time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC), "cs.CL", "cs.AI")
	add("b", time.Date(2026, 1, 11, 23, 0, 0, 0, time.UTC), "cs.CL", "cs.CL")
	add("c", time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), "cs.LG")

	got, err := env.analytics(time.Now()).CategoryDistributionOverTime(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, day(2026, 1, 12), got[0].Week)
	assert.Equal(t, "cs.LG", got[0].Category)
	assert.Equal(t, day(2026, 1, 5), got[1].Week)
	assert.Equal(t, "cs.CL", got[1].Category)
	assert.Equal(t, int64(2), got[1].Count)
	assert.Equal(t, "cs.AI", got[2].Category)
	assert.Equal(t, int64(1), got[2].Count)
}

func TestAnalytics_CanonicalMergesReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	llm, _, _ := env.entities.ResolveOrCreate(ctx, "Large Language Model", models.EntityMethod)
	a1, _, _ := env.entities.ResolveOrCreate(ctx, "LLMs", models.EntityMethod)
	a2, _, _ := env.entities.ResolveOrCreate(ctx, "LLM", models.EntityMethod)
	rag, _, _ := env.entities.ResolveOrCreate(ctx, "Retrieval-Augmented Generation", models.EntityMethod)
	a3, _, _ := env.entities.ResolveOrCreate(ctx, "RAG", models.EntityMethod)
	_, _, _ = env.entities.ResolveOrCreate(ctx, "Lonely", models.EntityMethod)
	require.NoError(t, env.entities.LinkAlias(ctx, a1.ID, llm.ID))
	require.NoError(t, env.entities.LinkAlias(ctx, a2.ID, llm.ID))
	require.NoError(t, env.entities.LinkAlias(ctx, a3.ID, rag.ID))

	got, err := env.analytics(time.Now()).CanonicalMergesReport(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Large Language Model", got[0].Canonical)
	assert.Equal(t, []string{"LLM", "LLMs"}, got[0].Aliases)
	assert.Equal(t, "Retrieval-Augmented Generation", got[1].Canonical)
	assert.Equal(t, []string{"RAG"}, got[1].Aliases)
}

// Zwei Papers in aufeinanderfolgenden Wochen erwähnen "Transformer".
func TestAnalytics_TransformerScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addPaper(t, "p1", time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC), models.EntityMethod, "Transformer")

	top, err := env.analytics(day(2026, 1, 8)).TopEntitiesByWeek(ctx, day(2026, 1, 6), models.EntityMethod, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Transformer", top[0].Name)
	assert.Equal(t, int64(1), top[0].Count)

	env.addPaper(t, "p2", time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC), models.EntityMethod, "Transformer")
	growth, err := env.analytics(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)).FastestGrowingEntities(ctx, models.EntityMethod)
	require.NoError(t, err)
	require.Len(t, growth, 1)
	assert.Equal(t, int64(1), growth[0].ThisWeek)
	assert.Equal(t, int64(1), growth[0].LastWeek)
	assert.Equal(t, int64(0), growth[0].Growth)
}
