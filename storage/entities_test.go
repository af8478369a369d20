package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "LoRA", NormalizeName("  LoRA "))
	assert.Equal(t, "Retrieval Augmented Generation", NormalizeName("Retrieval \t Augmented\nGeneration"))
	assert.Equal(t, "fine-tuning", NormalizeName("ﬁne-tuning"))
	// e + combining acute -> é
	assert.Equal(t, "caf\u00e9", NormalizeName("cafe\u0301"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestEntityStore_ResolveOrCreate(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	ctx := context.Background()

	e1, created, err := store.ResolveOrCreate(ctx, "LoRA", models.EntityMethod)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, e1.ID)
	assert.Nil(t, e1.CanonicalID)

	e2, created, err := store.ResolveOrCreate(ctx, " LoRA  ", models.EntityMethod)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e1.ID, e2.ID)

	// gleicher Name, anderer Typ ist eine eigene Entität
	e3, created, err := store.ResolveOrCreate(ctx, "LoRA", models.EntityLibrary)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, e1.ID, e3.ID)

	// Groß-/Kleinschreibung ist signifikant
	e4, _, err := store.ResolveOrCreate(ctx, "lora", models.EntityMethod)
	require.NoError(t, err)
	assert.NotEqual(t, e1.ID, e4.ID)
}

func TestEntityStore_ResolveOrCreate_Validation(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	ctx := context.Background()

	_, _, err := store.ResolveOrCreate(ctx, "   ", models.EntityMethod)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	_, _, err = store.ResolveOrCreate(ctx, "BERT", models.EntityType("model"))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "type", ve.Field)
}

func TestEntityStore_ResolveOrCreate_Concurrent(t *testing.T) {
	db := newTestDB(t)
	store := NewEntityStore(db)
	ctx := context.Background()

	const workers = 8
	ids := make([]uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, err := store.ResolveOrCreate(ctx, "GSM8K", models.EntityDataset)
			assert.NoError(t, err)
			if e != nil {
				ids[i] = e.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, db.Model(&models.Entity{}).Where("name = ?", "GSM8K").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEntityStore_FindByName(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	ctx := context.Background()

	first, _, err := store.ResolveOrCreate(ctx, "Transformers", models.EntityLibrary)
	require.NoError(t, err)
	_, _, err = store.ResolveOrCreate(ctx, "Transformers", models.EntityMethod)
	require.NoError(t, err)

	got, err := store.FindByName(ctx, "Transformers")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	byType, err := store.FindByNameAndType(ctx, "Transformers", models.EntityMethod)
	require.NoError(t, err)
	assert.Equal(t, models.EntityMethod, byType.Type)

	_, err = store.FindByName(ctx, "Mamba")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = store.Get(ctx, 9999)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestEntityStore_LinkAlias(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	ctx := context.Background()

	canonical, _, _ := store.ResolveOrCreate(ctx, "Retrieval-Augmented Generation", models.EntityMethod)
	alias, _, _ := store.ResolveOrCreate(ctx, "RAG", models.EntityMethod)
	other, _, _ := store.ResolveOrCreate(ctx, "retrieval augmented generation", models.EntityMethod)
	unrelated, _, _ := store.ResolveOrCreate(ctx, "DPO", models.EntityMethod)

	require.NoError(t, store.LinkAlias(ctx, alias.ID, canonical.ID))
	got, err := store.Get(ctx, alias.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CanonicalID)
	assert.Equal(t, canonical.ID, *got.CanonicalID)

	t.Run("same link again is a no-op", func(t *testing.T) {
		assert.NoError(t, store.LinkAlias(ctx, alias.ID, canonical.ID))
	})

	t.Run("self link", func(t *testing.T) {
		var le *models.InvalidLinkError
		assert.ErrorAs(t, store.LinkAlias(ctx, other.ID, other.ID), &le)
	})

	t.Run("target is an alias", func(t *testing.T) {
		var le *models.InvalidLinkError
		assert.ErrorAs(t, store.LinkAlias(ctx, other.ID, alias.ID), &le)
		got, err := store.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CanonicalID)
	})

	t.Run("no implicit overwrite", func(t *testing.T) {
		var le *models.InvalidLinkError
		assert.ErrorAs(t, store.LinkAlias(ctx, alias.ID, unrelated.ID), &le)
		got, err := store.Get(ctx, alias.ID)
		require.NoError(t, err)
		assert.Equal(t, canonical.ID, *got.CanonicalID)
	})

	t.Run("canonical with dependents cannot become an alias", func(t *testing.T) {
		var le *models.InvalidLinkError
		assert.ErrorAs(t, store.LinkAlias(ctx, canonical.ID, unrelated.ID), &le)
	})

	t.Run("missing entity", func(t *testing.T) {
		assert.True(t, errors.Is(store.LinkAlias(ctx, 4242, canonical.ID), models.ErrNotFound))
	})

	t.Run("explicit replace", func(t *testing.T) {
		require.NoError(t, store.ReplaceCanonical(ctx, alias.ID, unrelated.ID))
		got, err := store.Get(ctx, alias.ID)
		require.NoError(t, err)
		assert.Equal(t, unrelated.ID, *got.CanonicalID)
	})
}

func TestEntityStore_ListUnresolvedAndList(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	ctx := context.Background()

	a, _, _ := store.ResolveOrCreate(ctx, "GPT-4", models.EntityMethod)
	b, _, _ := store.ResolveOrCreate(ctx, "GPT4", models.EntityMethod)
	c, _, _ := store.ResolveOrCreate(ctx, "MMLU", models.EntityDataset)
	require.NoError(t, store.LinkAlias(ctx, b.ID, a.ID))

	unresolved, err := store.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	assert.Equal(t, a.ID, unresolved[0].ID)
	assert.Equal(t, c.ID, unresolved[1].ID)

	methods, err := store.List(ctx, EntityFilter{Type: models.EntityMethod})
	require.NoError(t, err)
	assert.Len(t, methods, 2)

	found, err := store.List(ctx, EntityFilter{Search: "mml"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "MMLU", found[0].Name)
}

func TestEntity_CreatedAtSet(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	e, _, err := store.ResolveOrCreate(context.Background(), "vLLM", models.EntityLibrary)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), e.CreatedAt, time.Minute)
}
