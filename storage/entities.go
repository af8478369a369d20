package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/osmangurlek/arxiv-trend-radar/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntityStore verwaltet Entitäten und ihre Alias-Verknüpfungen.
type EntityStore struct {
	db *gorm.DB
}

func NewEntityStore(db *gorm.DB) *EntityStore {
	return &EntityStore{db: db}
}

// WithDB bindet den Store an eine andere Verbindung, typischerweise eine Transaktion.
func (s *EntityStore) WithDB(db *gorm.DB) *EntityStore {
	return &EntityStore{db: db}
}

// EntityFilter schränkt List ein. Leere Felder filtern nicht.
type EntityFilter struct {
	Type   models.EntityType
	Search string
	Offset int
	Limit  int
}

// ResolveOrCreate liefert die Entität zu (name, type) oder legt sie an.
// Parallele Aufrufer landen über den Unique-Index auf derselben Zeile.
func (s *EntityStore) ResolveOrCreate(ctx context.Context, name string, typ models.EntityType) (*models.Entity, bool, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, false, &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !typ.Valid() {
		return nil, false, &models.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown entity type %q", typ)}
	}

	e := models.Entity{Name: name, Type: typ}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "type"}},
		DoNothing: true,
	}).Create(&e)
	if res.Error != nil {
		return nil, false, fmt.Errorf("insert entity %q: %w", name, res.Error)
	}
	if res.RowsAffected == 1 && e.ID != 0 {
		return &e, true, nil
	}

	existing, err := s.FindByNameAndType(ctx, name, typ)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get lädt eine Entität per ID.
func (s *EntityStore) Get(ctx context.Context, id uint) (*models.Entity, error) {
	var e models.Entity
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("load entity %d: %w", id, err)
	}
	return &e, nil
}

// FindByName sucht über alle Typen. Bei mehreren Treffern gewinnt die kleinste ID.
func (s *EntityStore) FindByName(ctx context.Context, name string) (*models.Entity, error) {
	name = NormalizeName(name)
	var e models.Entity
	err := s.db.WithContext(ctx).Where("name = ?", name).Order("id ASC").First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %q: %w", name, models.ErrNotFound)
		}
		return nil, fmt.Errorf("find entity %q: %w", name, err)
	}
	return &e, nil
}

// FindByNameAndType ist die eindeutige Suche über den (name, type)-Index.
func (s *EntityStore) FindByNameAndType(ctx context.Context, name string, typ models.EntityType) (*models.Entity, error) {
	name = NormalizeName(name)
	var e models.Entity
	err := s.db.WithContext(ctx).Where("name = ? AND type = ?", name, typ).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %q (%s): %w", name, typ, models.ErrNotFound)
		}
		return nil, fmt.Errorf("find entity %q (%s): %w", name, typ, err)
	}
	return &e, nil
}

// ListUnresolved liefert alle Entitäten ohne kanonischen Verweis, sortiert nach ID.
func (s *EntityStore) ListUnresolved(ctx context.Context) ([]models.Entity, error) {
	var out []models.Entity
	if err := s.db.WithContext(ctx).Where("canonical_id IS NULL").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list unresolved entities: %w", err)
	}
	return out, nil
}

// List gibt Entitäten gefiltert und paginiert zurück.
func (s *EntityStore) List(ctx context.Context, f EntityFilter) ([]models.Entity, error) {
	q := s.db.WithContext(ctx).Model(&models.Entity{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	var out []models.Entity
	if err := q.Order("name ASC, id ASC").Offset(f.Offset).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return out, nil
}

// LinkAlias setzt aliasID auf canonicalID. Ein bestehender anderer Verweis wird nicht überschrieben;
// derselbe Verweis erneut ist ein No-op.
func (s *EntityStore) LinkAlias(ctx context.Context, aliasID, canonicalID uint) error {
	return s.link(ctx, aliasID, canonicalID, false)
}

// ReplaceCanonical ersetzt einen vorhandenen Verweis explizit.
func (s *EntityStore) ReplaceCanonical(ctx context.Context, aliasID, canonicalID uint) error {
	return s.link(ctx, aliasID, canonicalID, true)
}

func (s *EntityStore) link(ctx context.Context, aliasID, canonicalID uint, replace bool) error {
	if aliasID == canonicalID {
		return &models.InvalidLinkError{AliasID: aliasID, CanonicalID: canonicalID, Reason: "entity cannot be its own canonical"}
	}
	alias, err := s.Get(ctx, aliasID)
	if err != nil {
		return err
	}
	canonical, err := s.Get(ctx, canonicalID)
	if err != nil {
		return err
	}
	if canonical.CanonicalID != nil {
		return &models.InvalidLinkError{AliasID: aliasID, CanonicalID: canonicalID,
			Reason: fmt.Sprintf("target is itself an alias of %d", *canonical.CanonicalID)}
	}
	if alias.CanonicalID != nil {
		if *alias.CanonicalID == canonicalID {
			return nil
		}
		if !replace {
			return &models.InvalidLinkError{AliasID: aliasID, CanonicalID: canonicalID,
				Reason: fmt.Sprintf("already linked to %d", *alias.CanonicalID)}
		}
	}

	var dependents int64
	if err := s.db.WithContext(ctx).Model(&models.Entity{}).Where("canonical_id = ?", aliasID).Count(&dependents).Error; err != nil {
		return fmt.Errorf("count dependents of %d: %w", aliasID, err)
	}
	if dependents > 0 {
		return &models.InvalidLinkError{AliasID: aliasID, CanonicalID: canonicalID,
			Reason: fmt.Sprintf("entity is canonical for %d other entities", dependents)}
	}

	// Nur schreiben, wenn sich der Verweis seit dem Lesen nicht geändert hat.
	q := s.db.WithContext(ctx).Model(&models.Entity{}).Where("id = ?", aliasID)
	if alias.CanonicalID == nil {
		q = q.Where("canonical_id IS NULL")
	} else {
		q = q.Where("canonical_id = ?", *alias.CanonicalID)
	}
	res := q.Update("canonical_id", canonicalID)
	if res.Error != nil {
		return fmt.Errorf("link entity %d to %d: %w", aliasID, canonicalID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &models.InvalidLinkError{AliasID: aliasID, CanonicalID: canonicalID, Reason: "canonical reference changed concurrently"}
	}
	return nil
}
