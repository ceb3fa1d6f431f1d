package repositories

import (
	"context"
	"fmt"
	"sync"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmailLogRepository interface {
	CreateEmailLog(ctx context.Context, entry *models.EmailLog) error
	ListEmailLogs(ctx context.Context, applicationID uuid.UUID) ([]models.EmailLog, error)
}

type emailLogRepository struct {
	DB *gorm.DB
}

func NewEmailLogRepository(db *gorm.DB) EmailLogRepository {
	return &emailLogRepository{DB: db}
}

func (r *emailLogRepository) CreateEmailLog(ctx context.Context, entry *models.EmailLog) error {
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	return nil
}

func (r *emailLogRepository) ListEmailLogs(ctx context.Context, applicationID uuid.UUID) ([]models.EmailLog, error) {
	var logs []models.EmailLog
	err := r.DB.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("sent_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", err)
	}
	return logs, nil
}

// MemoryEmailLogRepository keeps email logs in memory.
type MemoryEmailLogRepository struct {
	mu   sync.Mutex
	logs []models.EmailLog
}

func NewMemoryEmailLogRepository() *MemoryEmailLogRepository {
	return &MemoryEmailLogRepository{}
}

func (r *MemoryEmailLogRepository) CreateEmailLog(ctx context.Context, entry *models.EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *MemoryEmailLogRepository) ListEmailLogs(ctx context.Context, applicationID uuid.UUID) ([]models.EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var logs []models.EmailLog
	for _, entry := range r.logs {
		if entry.ApplicationID != nil && *entry.ApplicationID == applicationID {
			logs = append(logs, entry)
		}
	}
	return logs, nil
}
