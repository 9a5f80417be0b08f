package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glyphworks/puzzle-backend/internal/domain"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

type WorkflowRunRepo interface {
	Create(ctx context.Context, run *domain.WorkflowRun) error
	GetByWorkflowID(ctx context.Context, workflowID string) (*domain.WorkflowRun, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.WorkflowRun, error)
	UpdateFields(ctx context.Context, workflowID string, updates map[string]interface{}) error
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.WorkflowRun, error)
}

type workflowRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkflowRunRepo(db *gorm.DB, baseLog *logger.Logger) WorkflowRunRepo {
	return &workflowRunRepo{
		db:  db,
		log: baseLog.With("repo", "WorkflowRunRepo"),
	}
}

func (r *workflowRunRepo) Create(ctx context.Context, run *domain.WorkflowRun) error {
	if run == nil {
		return nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *workflowRunRepo) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.WorkflowRun, error) {
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return nil, nil
	}
	var run domain.WorkflowRun
	err := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *workflowRunRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.WorkflowRun, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, nil
	}
	var run domain.WorkflowRun
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *workflowRunRepo) UpdateFields(ctx context.Context, workflowID string, updates map[string]interface{}) error {
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" || len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&domain.WorkflowRun{}).
		Where("workflow_id = ?", workflowID).
		Updates(updates).Error
}

func (r *workflowRunRepo) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.WorkflowRun, error) {
	playerID = strings.TrimSpace(playerID)
	var out []*domain.WorkflowRun
	if playerID == "" {
		return out, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
