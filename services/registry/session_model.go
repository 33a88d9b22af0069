package registry

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type sessionRecordModel struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID         `gorm:"type:uuid;not null;index"`
	SessionToken      string            `gorm:"type:text;uniqueIndex;not null"`
	DeviceFingerprint string            `gorm:"type:text;index"`
	DeviceName        string            `gorm:"type:text"`
	OperatingSystem   string            `gorm:"type:text"`
	BrowserName       string            `gorm:"type:text"`
	UserAgentRaw      string            `gorm:"type:text"`
	Signals           datatypes.JSONMap `gorm:"type:jsonb"`
	IsActive          bool              `gorm:"not null;default:false;index"`
	LastActiveAt      time.Time         `gorm:"type:timestamptz;not null;index"`
	CreatedAt         time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (sessionRecordModel) TableName() string { return "session_records" }

func (m sessionRecordModel) toAPI() Session {
	return Session{
		ID:                m.ID,
		UserID:            m.UserID,
		SessionToken:      m.SessionToken,
		DeviceFingerprint: m.DeviceFingerprint,
		DeviceName:        m.DeviceName,
		OperatingSystem:   m.OperatingSystem,
		BrowserName:       m.BrowserName,
		UserAgentRaw:      m.UserAgentRaw,
		Signals:           mapFromJSONMap(m.Signals),
		IsActive:          m.IsActive,
		LastActiveAt:      m.LastActiveAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
