package repository

import (
	"context"
	"fmt"

	"github.com/aotal/dicom-api-mcp-project/internal/database"
	"github.com/aotal/dicom-api-mcp-project/internal/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct{}

// NewAuditRepository creates a new audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if err := database.DB.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListRecent retrieves the most recent audit logs
func (r *AuditRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	q := database.DB.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return logs, nil
}

// GetByResourceUID retrieves audit logs touching a specific study, series
// or instance UID
func (r *AuditRepository) GetByResourceUID(ctx context.Context, resourceUID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := database.DB.WithContext(ctx).
		Where("resource_uid = ?", resourceUID).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return logs, nil
}
