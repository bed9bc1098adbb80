package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/purrfect/backend/internal/models"
	"github.com/purrfect/backend/pkg/logger"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID    *uuid.UUID
	Action    string
	TargetID  *uuid.UUID
	Details   map[string]interface{}
	IPAddress string
}

// AuditService appends security-relevant actions to the audit trail.
// Recording is best effort: a failed insert is logged but never fails
// the request that triggered it.
type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

func (s *AuditService) Record(entry AuditEntry) {
	row := models.AuditLog{
		UserID:    entry.UserID,
		Action:    entry.Action,
		TargetID:  entry.TargetID,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.DB.Create(&row).Error; err != nil {
		logger.Error("audit_log_insert_failed", err, map[string]interface{}{
			"action": entry.Action,
		})
	}
}
