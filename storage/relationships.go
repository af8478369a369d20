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

// RelationshipStore verwaltet Papers, Paper-Entitäts-Links, Tags und Digests.
type RelationshipStore struct {
	db *gorm.DB
}

func NewRelationshipStore(db *gorm.DB) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// WithDB bindet den Store an eine andere Verbindung, typischerweise eine Transaktion.
func (s *RelationshipStore) WithDB(db *gorm.DB) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// likeEscaper maskiert LIKE-Platzhalter in Benutzereingaben.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// PaperFilter schränkt ListPapers ein.
type PaperFilter struct {
	Category string
	Offset   int
	Limit    int
}

// UpsertPaper legt ein Paper an, falls die ArxivID noch unbekannt ist. Bestehende Zeilen werden nie verändert.
func (s *RelationshipStore) UpsertPaper(ctx context.Context, rec models.PaperRecord) (*models.Paper, bool, error) {
	if err := rec.Validate(); err != nil {
		return nil, false, err
	}
	p := rec.ToPaper()
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "arxiv_id"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, false, fmt.Errorf("insert paper %s: %w", p.ArxivID, res.Error)
	}
	if res.RowsAffected == 1 && p.ID != 0 {
		return p, true, nil
	}

	var existing models.Paper
	if err := s.db.WithContext(ctx).Where("arxiv_id = ?", p.ArxivID).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("load paper %s: %w", p.ArxivID, err)
	}
	return &existing, false, nil
}

// GetPaper lädt ein Paper per ID.
func (s *RelationshipStore) GetPaper(ctx context.Context, id uint) (*models.Paper, error) {
	var p models.Paper
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("paper %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("load paper %d: %w", id, err)
	}
	return &p, nil
}

// ListPapers liefert Papers nach Veröffentlichung absteigend.
func (s *RelationshipStore) ListPapers(ctx context.Context, f PaperFilter) ([]models.Paper, error) {
	q := s.db.WithContext(ctx).Model(&models.Paper{})
	if cat := strings.TrimSpace(f.Category); cat != "" {
		// JSON-Liste als Text durchsuchen, funktioniert für jsonb und SQLite
		q = q.Where(`CAST(categories AS TEXT) LIKE ? ESCAPE '\'`, `%"`+likeEscaper.Replace(cat)+`"%`)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	var out []models.Paper
	if err := q.Order("published_at DESC, id DESC").Offset(f.Offset).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	return out, nil
}

// ExistingExternalIDs meldet, welche der übergebenen ArxivIDs bereits gespeichert sind.
func (s *RelationshipStore) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.Paper{}).Where("arxiv_id IN ?", ids).Pluck("arxiv_id", &existing).Error; err != nil {
		return nil, fmt.Errorf("lookup existing papers: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// LinkPaperEntity verknüpft Paper und Entität. Existiert der Link schon, gewinnt der erste Schreibvorgang.
func (s *RelationshipStore) LinkPaperEntity(ctx context.Context, paperID, entityID uint, evidence string, confidence float64) (*models.PaperEntity, bool, error) {
	if !models.ValidConfidence(confidence) {
		return nil, false, &models.ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", confidence)}
	}
	link := models.PaperEntity{PaperID: paperID, EntityID: entityID, Evidence: evidence, Confidence: confidence}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if res.Error != nil {
		return nil, false, fmt.Errorf("link paper %d to entity %d: %w", paperID, entityID, res.Error)
	}
	if res.RowsAffected == 1 {
		return &link, true, nil
	}
	var existing models.PaperEntity
	if err := s.db.WithContext(ctx).Where("paper_id = ? AND entity_id = ?", paperID, entityID).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("load paper entity link: %w", err)
	}
	return &existing, false, nil
}

// LinkPaperTag vergibt einen Taxonomie-Tag an ein Paper. Gleiche Semantik wie LinkPaperEntity.
func (s *RelationshipStore) LinkPaperTag(ctx context.Context, paperID uint, tag string, confidence float64) (*models.PaperTag, bool, error) {
	if !models.IsValidTag(tag) {
		return nil, false, &models.ValidationError{Field: "tag", Reason: fmt.Sprintf("%q is not in the taxonomy", tag)}
	}
	if !models.ValidConfidence(confidence) {
		return nil, false, &models.ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", confidence)}
	}
	pt := models.PaperTag{PaperID: paperID, Tag: tag, Confidence: confidence}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pt)
	if res.Error != nil {
		return nil, false, fmt.Errorf("tag paper %d with %q: %w", paperID, tag, res.Error)
	}
	if res.RowsAffected == 1 {
		return &pt, true, nil
	}
	var existing models.PaperTag
	if err := s.db.WithContext(ctx).Where("paper_id = ? AND tag = ?", paperID, tag).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("load paper tag: %w", err)
	}
	return &existing, false, nil
}

// TagsForPaper liefert die Tags eines Papers nach Konfidenz absteigend.
func (s *RelationshipStore) TagsForPaper(ctx context.Context, paperID uint) ([]models.PaperTag, error) {
	var out []models.PaperTag
	if err := s.db.WithContext(ctx).Where("paper_id = ?", paperID).Order("confidence DESC, tag ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load tags for paper %d: %w", paperID, err)
	}
	return out, nil
}

// EntitiesForPaper liefert die verknüpften Entitäten eines Papers.
func (s *RelationshipStore) EntitiesForPaper(ctx context.Context, paperID uint) ([]models.Entity, error) {
	var out []models.Entity
	err := s.db.WithContext(ctx).
		Joins("JOIN paper_entities pe ON pe.entity_id = entities.id").
		Where("pe.paper_id = ?", paperID).
		Order("entities.type ASC, entities.name ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load entities for paper %d: %w", paperID, err)
	}
	return out, nil
}

// CreateDigest speichert einen neuen Digest. Vorhandene Digests bleiben unverändert.
func (s *RelationshipStore) CreateDigest(ctx context.Context, d *models.Digest) error {
	if strings.TrimSpace(d.ContentMD) == "" {
		return &models.ValidationError{Field: "content_md", Reason: "must not be empty"}
	}
	d.ID = 0
	d.WeekStart = d.WeekStart.UTC()
	d.WeekEnd = d.WeekEnd.UTC()
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("insert digest: %w", err)
	}
	return nil
}

// LatestDigest liefert den zuletzt erzeugten Digest.
func (s *RelationshipStore) LatestDigest(ctx context.Context) (*models.Digest, error) {
	var d models.Digest
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("digest: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("load latest digest: %w", err)
	}
	return &d, nil
}
