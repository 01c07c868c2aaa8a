package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog records one PACS operation performed through the gateway.
type AuditLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Operation    string    `gorm:"type:varchar(50);not null;index" json:"operation"` // c-find, c-move, c-echo, local-metadata
	Level        string    `gorm:"type:varchar(20);index" json:"level,omitempty"`
	ResourceUID  string    `gorm:"type:varchar(255);index" json:"resource_uid,omitempty"`
	RemoteAET    string    `gorm:"type:varchar(50)" json:"remote_aet,omitempty"`
	Status       string    `gorm:"type:varchar(20);index" json:"status"` // success, partial, failure
	ResultCount  int       `json:"result_count"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	Duration     int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate hook
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
