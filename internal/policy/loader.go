package policy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/finops-kit/costgov/internal/models"
)

// Well-known document names on the config source.
const (
	DocCostRules     = "cost-rules"
	DocTagPolicy     = "tag-policy"
	DocCleanupPolicy = "cleanup-policy"
)

// Source fetches the current version of a named policy document.
// Implementations: SSM Parameter Store (production), FileSource (local runs).
type Source interface {
	// FetchDocument returns the raw document body. A missing document is an
	// error; the loader translates it into a defaults fallback.
	FetchDocument(ctx context.Context, name string) ([]byte, error)
}

// Load fetches and parses all three policy documents from src and returns
// an immutable Snapshot. Any document that cannot be fetched or parsed is
// replaced by its built-in default and recorded in Snapshot.Degraded; Load
// itself never fails. A nil src returns DefaultSnapshot().
func Load(ctx context.Context, src Source) *Snapshot {
	if src == nil {
		return DefaultSnapshot()
	}

	log := zerolog.Ctx(ctx)
	snap := DefaultSnapshot()

	if err := loadDoc(ctx, src, DocCostRules, &snap.CostRules); err != nil {
		snap.CostRules = DefaultCostRules()
		snap.Degraded = append(snap.Degraded, DocCostRules)
		log.Warn().Err(err).Str("document", DocCostRules).Msg("policy document degraded to defaults")
	}
	if err := loadDoc(ctx, src, DocTagPolicy, &snap.TagPolicy); err != nil {
		snap.TagPolicy = DefaultTagPolicy()
		snap.Degraded = append(snap.Degraded, DocTagPolicy)
		log.Warn().Err(err).Str("document", DocTagPolicy).Msg("policy document degraded to defaults")
	}
	if err := loadDoc(ctx, src, DocCleanupPolicy, &snap.Cleanup); err != nil {
		snap.Cleanup = DefaultCleanupPolicy()
		snap.Degraded = append(snap.Degraded, DocCleanupPolicy)
		log.Warn().Err(err).Str("document", DocCleanupPolicy).Msg("policy document degraded to defaults")
	}

	return snap
}

// loadDoc fetches, parses, and validates one document into out.
// Documents are YAML; JSON bodies parse too since JSON is a YAML subset,
// which keeps SSM parameters written as JSON working unchanged.
func loadDoc(ctx context.Context, src Source, name string, out any) error {
	body, err := src.FetchDocument(ctx, name)
	if err != nil {
		return &models.ConfigError{Document: name, Err: err}
	}
	if err := yaml.Unmarshal(body, out); err != nil {
		return &models.ConfigError{Document: name, Err: fmt.Errorf("parse: %w", err)}
	}
	if errs := validateDocument(name, out); len(errs) > 0 {
		return &models.ConfigError{Document: name, Err: errs[0]}
	}
	return nil
}
