package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

// Repository persists an audit trail of pipeline runs. The full result stays
// in the response; the database keeps the run summary and loss statistics.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type runModel struct {
	ID            uuid.UUID         `gorm:"primaryKey;column:id"`
	TableID       string            `gorm:"column:table_id;index"`
	MatchedCount  int               `gorm:"column:matched_count"`
	TotalCount    int               `gorm:"column:total_count"`
	PatientCount  int               `gorm:"column:patient_count"`
	AbnormalCount int               `gorm:"column:abnormal_count"`
	Stats         datatypes.JSONMap `gorm:"column:stats"`
	CreatedAt     time.Time         `gorm:"column:created_at"`
}

func (runModel) TableName() string { return "pipeline_runs" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&runModel{})
}

func (r *Repository) CreateRun(ctx context.Context, result models.PipelineResult) error {
	id, err := uuid.Parse(result.RunID)
	if err != nil {
		id = uuid.New()
	}

	row := runModel{
		ID:            id,
		TableID:       result.TableID,
		MatchedCount:  result.MatchedCount,
		TotalCount:    result.TotalCount,
		PatientCount:  len(result.Patients),
		AbnormalCount: len(result.AbnormalTests),
		Stats: datatypes.JSONMap{
			"empty_and_duplicates": result.Preprocess.EmptyAndDuplicates,
			"outliers":             result.Preprocess.Outliers,
			"total_before":         result.Preprocess.TotalBefore,
			"total_after":          result.Preprocess.TotalAfter,
		},
		CreatedAt: result.CompletedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// RunSummary is the persisted view of one run.
type RunSummary struct {
	RunID         string                 `json:"run_id"`
	TableID       string                 `json:"table_id"`
	MatchedCount  int                    `json:"matched_count"`
	TotalCount    int                    `json:"total_count"`
	PatientCount  int                    `json:"patient_count"`
	AbnormalCount int                    `json:"abnormal_count"`
	Stats         map[string]interface{} `json:"stats"`
	CreatedAt     time.Time              `json:"created_at"`
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	var rows []runModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, summarize(row))
	}
	return out, nil
}

func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (RunSummary, error) {
	var row runModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return RunSummary{}, err
	}
	return summarize(row), nil
}

func summarize(row runModel) RunSummary {
	return RunSummary{
		RunID:         row.ID.String(),
		TableID:       row.TableID,
		MatchedCount:  row.MatchedCount,
		TotalCount:    row.TotalCount,
		PatientCount:  row.PatientCount,
		AbnormalCount: row.AbnormalCount,
		Stats:         row.Stats,
		CreatedAt:     row.CreatedAt,
	}
}
