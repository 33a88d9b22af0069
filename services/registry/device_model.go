package registry

import (
	"time"

	"github.com/google/uuid"
)

type deviceRegistrationModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Fingerprint string    `gorm:"type:text;uniqueIndex;not null"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (deviceRegistrationModel) TableName() string { return "device_registrations" }

func (m deviceRegistrationModel) toAPI() DeviceRegistration {
	return DeviceRegistration{
		ID:          m.ID,
		Fingerprint: m.Fingerprint,
		UserID:      m.UserID,
		CreatedAt:   m.CreatedAt,
	}
}
