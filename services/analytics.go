package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"gorm.io/gorm"
)

const (
	defaultTopLimit         = 10
	defaultCooccurrenceDays = 30
	growthLimit             = 10
	week                    = 7 * 24 * time.Hour
)

// Analytics beantwortet Trendabfragen. Alle Zeitfenster sind halboffen [start, end) in UTC.
type Analytics struct {
	DB       *gorm.DB
	Entities *storage.EntityStore
	// Now liefert die aktuelle Zeit; in Tests ersetzbar.
	Now func() time.Time
}

// EntityCount ist die Anzahl unterschiedlicher Papers einer Entität.
type EntityCount struct {
	EntityID uint              `json:"entity_id"`
	Name     string            `json:"name"`
	Type     models.EntityType `json:"type"`
	Count    int64             `json:"count" gorm:"column:paper_count"`
}

// EntityGrowth vergleicht diese mit der vorigen Woche.
type EntityGrowth struct {
	EntityID uint              `json:"entity_id"`
	Name     string            `json:"name"`
	Type     models.EntityType `json:"type"`
	ThisWeek int64             `json:"this_week"`
	LastWeek int64             `json:"last_week"`
	Growth   int64             `json:"growth"`
}

// CooccurrenceEdge ist ein ungeordnetes Entitätspaar mit A.ID < B.ID.
type CooccurrenceEdge struct {
	EntityAID uint   `json:"entity_a_id" gorm:"column:entity_a_id"`
	EntityA   string `json:"entity_a" gorm:"column:entity_a"`
	EntityBID uint   `json:"entity_b_id" gorm:"column:entity_b_id"`
	EntityB   string `json:"entity_b" gorm:"column:entity_b"`
	Count     int64  `json:"count" gorm:"column:paper_count"`
}

// PaperEvidence ist ein Paper samt Beleg für eine Entität.
type PaperEvidence struct {
	Paper      models.Paper `json:"paper" gorm:"embedded"`
	Evidence   string       `json:"evidence"`
	Confidence float64      `json:"confidence"`
}

// CategoryCount zählt Papers pro Woche und arXiv-Kategorie.
type CategoryCount struct {
	Week     time.Time `json:"week"`
	Category string    `json:"category"`
	Count    int64     `json:"count"`
}

// CanonicalMerge listet die Aliase einer kanonischen Entität.
type CanonicalMerge struct {
	CanonicalID uint              `json:"canonical_id"`
	Canonical   string            `json:"canonical"`
	Type        models.EntityType `json:"type"`
	Aliases     []string          `json:"aliases"`
}

func (a *Analytics) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

// WeekStart liefert Montag 00:00 UTC der Woche von t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
}

// TopEntitiesByWeek zählt Papers in [weekStart, weekStart+7d) je Entität des Typs.
func (a *Analytics) TopEntitiesByWeek(ctx context.Context, weekStart time.Time, typ models.EntityType, limit int) ([]EntityCount, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	start := weekStart.UTC()
	out, err := a.countsInWindow(ctx, typ, start, start.Add(week), limit)
	if err != nil {
		return nil, fmt.Errorf("top entities: %w", err)
	}
	return out, nil
}

func (a *Analytics) countsInWindow(ctx context.Context, typ models.EntityType, start, end time.Time, limit int) ([]EntityCount, error) {
	q := a.DB.WithContext(ctx).Table("paper_entities AS pe").
		Select("e.id AS entity_id, e.name AS name, e.type AS type, COUNT(DISTINCT pe.paper_id) AS paper_count").
		Joins("JOIN papers p ON p.id = pe.paper_id").
		Joins("JOIN entities e ON e.id = pe.entity_id").
		Where("p.published_at >= ? AND p.published_at < ?", start, end)
	if typ != "" {
		q = q.Where("e.type = ?", typ)
	}
	q = q.Group("e.id, e.name, e.type").Order("paper_count DESC, e.name ASC, e.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []EntityCount
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FastestGrowingEntities vergleicht [now-7d, now) mit [now-14d, now-7d).
// Nur Entitäten mit Papers in dieser Woche werden berücksichtigt.
func (a *Analytics) FastestGrowingEntities(ctx context.Context, typ models.EntityType) ([]EntityGrowth, error) {
	now := a.now()
	thisWeek, err := a.countsInWindow(ctx, typ, now.Add(-week), now, 0)
	if err != nil {
		return nil, fmt.Errorf("growth (this week): %w", err)
	}
	lastWeek, err := a.countsInWindow(ctx, typ, now.Add(-2*week), now.Add(-week), 0)
	if err != nil {
		return nil, fmt.Errorf("growth (last week): %w", err)
	}
	prev := make(map[uint]int64, len(lastWeek))
	for _, c := range lastWeek {
		prev[c.EntityID] = c.Count
	}

	out := make([]EntityGrowth, 0, len(thisWeek))
	for _, c := range thisWeek {
		last := prev[c.EntityID]
		out = append(out, EntityGrowth{
			EntityID: c.EntityID,
			Name:     c.Name,
			Type:     c.Type,
			ThisWeek: c.Count,
			LastWeek: last,
			Growth:   c.Count - last,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Growth != out[j].Growth {
			return out[i].Growth > out[j].Growth
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].EntityID < out[j].EntityID
	})
	if len(out) > growthLimit {
		out = out[:growthLimit]
	}
	return out, nil
}

// EntityCooccurrenceEdges zählt Paare von Entitäten des Typs auf Papers aus [now-days, now).
func (a *Analytics) EntityCooccurrenceEdges(ctx context.Context, typ models.EntityType, days int) ([]CooccurrenceEdge, error) {
	if days <= 0 {
		days = defaultCooccurrenceDays
	}
	now := a.now()
	start := now.Add(-time.Duration(days) * 24 * time.Hour)

	q := a.DB.WithContext(ctx).Table("paper_entities AS pe1").
		Select("ea.id AS entity_a_id, ea.name AS entity_a, eb.id AS entity_b_id, eb.name AS entity_b, COUNT(DISTINCT pe1.paper_id) AS paper_count").
		Joins("JOIN paper_entities pe2 ON pe2.paper_id = pe1.paper_id AND pe1.entity_id < pe2.entity_id").
		Joins("JOIN entities ea ON ea.id = pe1.entity_id").
		Joins("JOIN entities eb ON eb.id = pe2.entity_id").
		Joins("JOIN papers p ON p.id = pe1.paper_id").
		Where("p.published_at >= ? AND p.published_at < ?", start, now)
	if typ != "" {
		q = q.Where("ea.type = ? AND eb.type = ?", typ, typ)
	}
	var out []CooccurrenceEdge
	err := q.Group("ea.id, ea.name, eb.id, eb.name").
		Order("paper_count DESC, ea.name ASC, eb.name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("co-occurrence: %w", err)
	}
	return out, nil
}

// PapersForEntity liefert alle Papers einer Entität, neueste zuerst.
func (a *Analytics) PapersForEntity(ctx context.Context, entityID uint) ([]PaperEvidence, error) {
	if _, err := a.Entities.Get(ctx, entityID); err != nil {
		return nil, err
	}
	var out []PaperEvidence
	err := a.DB.WithContext(ctx).Table("papers").
		Select("papers.*, pe.evidence AS evidence, pe.confidence AS confidence").
		Joins("JOIN paper_entities pe ON pe.paper_id = papers.id").
		Where("pe.entity_id = ?", entityID).
		Order("papers.published_at DESC, papers.id DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("papers for entity %d: %w", entityID, err)
	}
	return out, nil
}

// CategoryDistributionOverTime zählt Papers je (Woche, Kategorie). Woche = Montag 00:00 UTC.
func (a *Analytics) CategoryDistributionOverTime(ctx context.Context) ([]CategoryCount, error) {
	var papers []models.Paper
	if err := a.DB.WithContext(ctx).Select("id", "published_at", "categories").Find(&papers).Error; err != nil {
		return nil, fmt.Errorf("category distribution: %w", err)
	}

	type key struct {
		week     time.Time
		category string
	}
	counts := map[key]int64{}
	for _, p := range papers {
		w := WeekStart(p.PublishedAt)
		seen := map[string]bool{}
		for _, c := range p.Categories {
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			counts[key{w, c}]++
		}
	}

	out := make([]CategoryCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, CategoryCount{Week: k.week, Category: k.category, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Week.Equal(out[j].Week) {
			return out[i].Week.After(out[j].Week)
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// CanonicalMergesReport listet jede kanonische Entität mit mindestens einem Alias.
func (a *Analytics) CanonicalMergesReport(ctx context.Context) ([]CanonicalMerge, error) {
	var aliases []models.Entity
	if err := a.DB.WithContext(ctx).Where("canonical_id IS NOT NULL").Find(&aliases).Error; err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	if len(aliases) == 0 {
		return []CanonicalMerge{}, nil
	}

	byCanonical := map[uint][]string{}
	ids := make([]uint, 0)
	for _, e := range aliases {
		id := *e.CanonicalID
		if _, ok := byCanonical[id]; !ok {
			ids = append(ids, id)
		}
		byCanonical[id] = append(byCanonical[id], e.Name)
	}

	var canonicals []models.Entity
	if err := a.DB.WithContext(ctx).Where("id IN ?", ids).Find(&canonicals).Error; err != nil {
		return nil, fmt.Errorf("load canonical entities: %w", err)
	}

	out := make([]CanonicalMerge, 0, len(canonicals))
	for _, c := range canonicals {
		names := byCanonical[c.ID]
		sort.Strings(names)
		out = append(out, CanonicalMerge{CanonicalID: c.ID, Canonical: c.Name, Type: c.Type, Aliases: names})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Canonical != out[j].Canonical {
			return out[i].Canonical < out[j].Canonical
		}
		return out[i].CanonicalID < out[j].CanonicalID
	})
	return out, nil
}
