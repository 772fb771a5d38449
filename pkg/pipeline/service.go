// Package pipeline runs the full identity-resolution and reconciliation
// sequence over an uploaded table: resolve raw identifiers against the
// catalog, clean and filter the records, then group the surviving
// measurements into clinical categories with abnormal-value detection.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/catalog"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/clean"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/logger"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/grouping"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/observability/metrics"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/resolve"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/tables"
)

const eventSource = "labtest-service"

// EventPublisher is the slice of the Kafka producer the service needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	cat      *catalog.Catalog
	resolver *resolve.Resolver
	store    tables.Store
	repo     *Repository
	producer EventPublisher
	sigma    float64

	mu      sync.RWMutex
	results map[string]models.PipelineResult
}

// NewService wires the pipeline. repo and producer may be nil; run auditing
// and event publishing are then skipped.
func NewService(cat *catalog.Catalog, store tables.Store, repo *Repository, producer EventPublisher, threshold, sigma float64) *Service {
	return &Service{
		cat:      cat,
		resolver: resolve.NewResolver(cat, threshold),
		store:    store,
		repo:     repo,
		producer: producer,
		sigma:    sigma,
		results:  make(map[string]models.PipelineResult),
	}
}

// ProcessTable loads a stored table and processes it.
func (s *Service) ProcessTable(ctx context.Context, tableID string) (models.PipelineResult, error) {
	table, err := s.store.Get(ctx, tableID)
	if err != nil {
		return models.PipelineResult{}, err
	}
	result := s.Process(ctx, table)
	result.TableID = tableID
	s.record(ctx, result)

	s.mu.Lock()
	s.results[tableID] = result
	s.mu.Unlock()

	return result, nil
}

// Report returns the most recent result for a processed table. Results live
// in memory only, for the lifetime of the process.
func (s *Service) Report(tableID string) (models.PipelineResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[tableID]
	return result, ok
}

// Process runs the pipeline over an in-memory table. It never fails as a
// whole: unresolvable identifiers pass through unchanged and malformed
// values are dropped entry by entry.
func (s *Service) Process(ctx context.Context, table models.TableData) models.PipelineResult {
	ids := collectIdentifiers(table)
	mapping := s.resolver.Resolve(ids)

	testNames := s.canonicalNames(mapping, table.TestNames)
	patients := s.rewriteRecords(table.Patients, mapping.Codes)

	cleaned, stats := clean.Preprocess(patients, s.sigma)
	rows := flatten(cleaned, testNames, mapping.Codes)

	result := models.PipelineResult{
		RunID:                uuid.NewString(),
		ColumnNameToTestCode: mapping.Codes,
		TestNames:            testNames,
		Patients:             cleaned,
		Groups:               grouping.Group(rows, s.cat),
		AbnormalTests:        grouping.Abnormal(rows, s.cat),
		MatchedCount:         mapping.MatchedCount,
		TotalCount:           mapping.TotalCount,
		Preprocess:           stats,
		CompletedAt:          time.Now().UTC(),
	}

	metrics.ObserveRun(
		result.MatchedCount,
		result.TotalCount-result.MatchedCount,
		stats.TotalBefore-stats.TotalAfter,
		len(result.AbnormalTests),
	)

	logger.Log.WithFields(map[string]interface{}{
		"run_id":        result.RunID,
		"matched":       result.MatchedCount,
		"total":         result.TotalCount,
		"patients":      len(result.Patients),
		"abnormal":      len(result.AbnormalTests),
		"removed_total": stats.TotalBefore - stats.TotalAfter,
	}).Info("Pipeline run completed")

	return result
}

// record persists the run summary and announces completion. Both are
// best-effort; the result has already been computed.
func (s *Service) record(ctx context.Context, result models.PipelineResult) {
	if s.repo != nil {
		if err := s.repo.CreateRun(ctx, result); err != nil {
			logger.Log.WithError(err).Warn("failed to persist pipeline run")
		}
	}
	if s.producer != nil {
		err := s.producer.PublishEvent(ctx, "pipeline.completed", eventSource, map[string]interface{}{
			"run_id":        result.RunID,
			"table_id":      result.TableID,
			"matched_count": result.MatchedCount,
			"total_count":   result.TotalCount,
			"patients":      len(result.Patients),
			"abnormal":      len(result.AbnormalTests),
		})
		if err != nil {
			logger.Log.WithError(err).Warn("failed to publish pipeline event")
		}
	}
}

// collectIdentifiers gathers every raw identifier seen in the table, both
// declared test names and keys appearing inside patient analyses. Sorted
// for deterministic resolution.
func collectIdentifiers(table models.TableData) []string {
	set := make(map[string]bool)
	for id := range table.TestNames {
		set[id] = true
	}
	for _, rec := range table.Patients {
		for id := range rec.Analyses {
			set[id] = true
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// canonicalNames maps every raw identifier to its catalog display name,
// falling back to the uploaded name and then the identifier itself.
func (s *Service) canonicalNames(mapping resolve.Mapping, uploaded map[string]string) map[string]string {
	names := make(map[string]string, len(mapping.Codes))
	for id, code := range mapping.Codes {
		if t, ok := s.cat.Lookup(code); ok && t.Name != "" {
			names[id] = t.Name
			continue
		}
		if name := uploaded[id]; name != "" {
			names[id] = name
			continue
		}
		names[id] = id
	}
	return names
}

// rewriteRecords rekeys every record's analyses by resolved catalog code
// and fills missing units from the catalog.
func (s *Service) rewriteRecords(records []models.PatientRecord, codes map[string]string) []models.PatientRecord {
	out := make([]models.PatientRecord, 0, len(records))
	for _, rec := range records {
		rewritten := models.PatientRecord{
			PatientID: rec.PatientID,
			Date:      rec.Date,
			Analyses:  make(map[string]models.Analysis, len(rec.Analyses)),
		}
		for rawID, analysis := range rec.Analyses {
			code, ok := codes[rawID]
			if !ok {
				code = rawID
			}
			if analysis.Unit == "" {
				if t, ok := s.cat.Lookup(code); ok {
					analysis.Unit = t.Unit
				}
			}
			rewritten.Analyses[code] = analysis
		}
		out = append(out, rewritten)
	}
	return out
}

// flatten produces the long-form measurement rows grouping works on.
// Non-numeric values are left out; they carry no comparable measurement.
func flatten(records []models.PatientRecord, testNames map[string]string, codes map[string]string) []models.TestRow {
	nameByCode := make(map[string]string, len(codes))
	for id, code := range codes {
		if _, ok := nameByCode[code]; !ok {
			nameByCode[code] = testNames[id]
		}
	}

	var rows []models.TestRow
	for _, rec := range records {
		recordCodes := make([]string, 0, len(rec.Analyses))
		for code := range rec.Analyses {
			recordCodes = append(recordCodes, code)
		}
		sort.Strings(recordCodes)

		for _, code := range recordCodes {
			analysis := rec.Analyses[code]
			value, ok := clean.NumericValue(analysis.Value)
			if !ok {
				continue
			}
			rows = append(rows, models.TestRow{
				PatientID: rec.PatientID,
				TestCode:  code,
				TestName:  nameByCode[code],
				Value:     value,
				Unit:      analysis.Unit,
				Date:      rec.Date,
			})
		}
	}
	return rows
}
