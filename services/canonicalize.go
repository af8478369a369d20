package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Gründe für übersprungene Gruppen oder Aliase.
const (
	SkipCanonicalNotFound = "canonical_not_found"
	SkipAliasNotFound     = "alias_not_found"
	SkipSameEntity        = "same_entity"
	SkipInvalidLink       = "invalid_link"
	SkipEmptyGroup        = "empty_group"
)

// Canonicalizer fasst Schreibvarianten von Entitäten unter einer kanonischen Entität zusammen.
type Canonicalizer struct {
	DB       *gorm.DB
	Entities *storage.EntityStore
	Grouper  Grouper
	Retry    RetryPolicy
	Logger   *zap.Logger
}

// AliasLink ist ein gesetzter Alias-Verweis.
type AliasLink struct {
	AliasID       uint   `json:"alias_id"`
	Alias         string `json:"alias"`
	CanonicalID   uint   `json:"canonical_id"`
	CanonicalName string `json:"canonical"`
}

// SkippedItem ist eine übersprungene Gruppe oder ein übersprungener Alias.
type SkippedItem struct {
	Group  string `json:"group"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// CanonicalizeReport fasst einen Lauf zusammen.
type CanonicalizeReport struct {
	Candidates int           `json:"candidates"`
	Groups     int           `json:"groups"`
	Linked     []AliasLink   `json:"linked"`
	Skipped    []SkippedItem `json:"skipped"`
}

// Run führt einen Kanonisierungslauf aus. Schlägt die Gruppierung fehl, wird nichts geschrieben.
// Alle Links eines Laufs werden gemeinsam committet.
func (c *Canonicalizer) Run(ctx context.Context) (*CanonicalizeReport, error) {
	report := &CanonicalizeReport{}

	unresolved, err := c.Entities.ListUnresolved(ctx)
	if err != nil {
		return report, err
	}
	names := uniqueNames(unresolved)
	report.Candidates = len(names)
	if len(names) == 0 {
		c.Logger.Info("No unresolved entities, nothing to canonicalize")
		return report, nil
	}

	groups, err := Retry(ctx, withRetryMetric(c.Retry, "group"), func(ctx context.Context) ([]models.CanonicalGroup, error) {
		return c.Grouper.Group(ctx, names)
	})
	if err != nil {
		c.Logger.Error("Gruppierung fehlgeschlagen", zap.Error(err))
		return report, fmt.Errorf("group entity names: %w", err)
	}
	report.Groups = len(groups)

	var linked []AliasLink
	var skipped []SkippedItem
	err = c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ents := c.Entities.WithDB(tx)
		for _, g := range groups {
			l, s, err := c.applyGroup(ctx, ents, g)
			if err != nil {
				return err
			}
			linked = append(linked, l...)
			skipped = append(skipped, s...)
		}
		return nil
	})
	if err != nil {
		c.Logger.Error("Kanonisierung zurückgerollt", zap.Error(err))
		return report, fmt.Errorf("apply canonical groups: %w", err)
	}

	report.Linked = linked
	report.Skipped = skipped
	aliasesLinkedCounter.Add(float64(len(linked)))
	c.Logger.Info("Canonicalization finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("groups", report.Groups),
		zap.Int("linked", len(linked)),
		zap.Int("skipped", len(skipped)))
	return report, nil
}

// applyGroup verknüpft die Aliase einer Gruppe. Nur Datenbankfehler werden zurückgegeben.
func (c *Canonicalizer) applyGroup(ctx context.Context, ents *storage.EntityStore, g models.CanonicalGroup) ([]AliasLink, []SkippedItem, error) {
	log := c.Logger.With(zap.String("group", g.Canonical))
	var linked []AliasLink
	var skipped []SkippedItem
	skip := func(item, reason string, err error) {
		s := SkippedItem{Group: g.Canonical, Item: item, Reason: reason}
		if err != nil {
			s.Error = err.Error()
		}
		skipped = append(skipped, s)
		log.Warn("Skipping canonicalization item", zap.String("item", item), zap.String("reason", reason), zap.Error(err))
	}

	if strings.TrimSpace(g.Canonical) == "" && len(g.Aliases) == 0 {
		skip("", SkipEmptyGroup, nil)
		return nil, skipped, nil
	}

	anchor, err := ents.FindByName(ctx, g.Canonical)
	if errors.Is(err, models.ErrNotFound) && len(g.Aliases) > 0 {
		anchor, err = ents.FindByName(ctx, g.Aliases[0])
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			skip(g.Canonical, SkipCanonicalNotFound, nil)
			return nil, skipped, nil
		}
		return nil, nil, err
	}

	for _, alias := range g.Aliases {
		entity, err := ents.FindByNameAndType(ctx, alias, anchor.Type)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				skip(alias, SkipAliasNotFound, nil)
				continue
			}
			return nil, nil, err
		}
		if entity.ID == anchor.ID {
			skip(alias, SkipSameEntity, nil)
			continue
		}
		if err := ents.LinkAlias(ctx, entity.ID, anchor.ID); err != nil {
			var le *models.InvalidLinkError
			if errors.As(err, &le) {
				skip(alias, SkipInvalidLink, err)
				continue
			}
			return nil, nil, err
		}
		linked = append(linked, AliasLink{AliasID: entity.ID, Alias: entity.Name, CanonicalID: anchor.ID, CanonicalName: anchor.Name})
	}
	return linked, skipped, nil
}

// uniqueNames liefert die Namen in ID-Reihenfolge ohne Duplikate.
func uniqueNames(entities []models.Entity) []string {
	seen := make(map[string]bool, len(entities))
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		names = append(names, e.Name)
	}
	return names
}
