package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionStore is the persistence surface the service logic runs against.
// The production implementation is gorm over Postgres; tests substitute an
// in-memory store.
type sessionStore interface {
	// latestOtherActive returns the most recently active session for userID
	// whose token differs from token.
	latestOtherActive(ctx context.Context, userID uuid.UUID, token string) (Session, bool, error)

	// registerSession displaces every other-token record of the user and
	// upserts the caller's record in a single transaction, returning the
	// current row and the displaced row images.
	registerSession(ctx context.Context, in RegisterInput, at time.Time) (Session, []Session, error)

	deactivateByID(ctx context.Context, id uuid.UUID, at time.Time) (Session, bool, error)
	deactivateByToken(ctx context.Context, token string, at time.Time) (Session, bool, error)

	// touch refreshes last_active_at for an active record. The is_active
	// filter makes it a no-op on displaced records instead of resurrecting
	// them.
	touch(ctx context.Context, token string, at time.Time) (bool, error)

	listByUser(ctx context.Context, userID uuid.UUID) ([]Session, error)

	deviceOwner(ctx context.Context, fingerprint string) (DeviceRegistration, bool, error)
	registerDevice(ctx context.Context, fingerprint string, userID uuid.UUID) (DeviceRegistration, error)
}

type gormStore struct {
	orm *gorm.DB
}

func newGormStore(orm *gorm.DB) *gormStore {
	return &gormStore{orm: orm}
}

func (g *gormStore) latestOtherActive(ctx context.Context, userID uuid.UUID, token string) (Session, bool, error) {
	var m sessionRecordModel
	err := g.orm.WithContext(ctx).
		Where("user_id = ? AND session_token <> ? AND is_active = ?", userID, token, true).
		Order("last_active_at DESC").
		First(&m).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Session{}, false, nil
	case err != nil:
		return Session{}, false, err
	}
	return m.toAPI(), true, nil
}

func (g *gormStore) registerSession(ctx context.Context, in RegisterInput, at time.Time) (Session, []Session, error) {
	var (
		current   sessionRecordModel
		displaced []sessionRecordModel
	)

	err := g.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND session_token <> ? AND is_active = ?", in.UserID, in.SessionToken, true).
			Find(&displaced).Error; err != nil {
			return err
		}

		if len(displaced) > 0 {
			if err := tx.Model(&sessionRecordModel{}).
				Where("user_id = ? AND session_token <> ? AND is_active = ?", in.UserID, in.SessionToken, true).
				Updates(map[string]any{"is_active": false, "updated_at": at}).Error; err != nil {
				return err
			}
		}

		err := tx.Where("session_token = ?", in.SessionToken).First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			current = sessionRecordModel{
				ID:                uuid.New(),
				UserID:            in.UserID,
				SessionToken:      in.SessionToken,
				DeviceFingerprint: in.DeviceFingerprint,
				DeviceName:        in.DeviceName,
				OperatingSystem:   in.OperatingSystem,
				BrowserName:       in.BrowserName,
				UserAgentRaw:      in.UserAgentRaw,
				Signals:           toJSONMap(in.Signals),
				IsActive:          true,
				LastActiveAt:      at,
				CreatedAt:         at,
				UpdatedAt:         at,
			}
			return tx.Create(&current).Error
		case err != nil:
			return err
		}

		updates := map[string]any{
			"user_id":            in.UserID,
			"device_fingerprint": in.DeviceFingerprint,
			"device_name":        in.DeviceName,
			"operating_system":   in.OperatingSystem,
			"browser_name":       in.BrowserName,
			"user_agent_raw":     in.UserAgentRaw,
			"signals":            toJSONMap(in.Signals),
			"is_active":          true,
			"last_active_at":     at,
			"updated_at":         at,
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&current, "id = ?", current.ID).Error
	})
	if err != nil {
		return Session{}, nil, err
	}

	out := make([]Session, 0, len(displaced))
	for _, m := range displaced {
		m.IsActive = false
		m.UpdatedAt = at
		out = append(out, m.toAPI())
	}
	return current.toAPI(), out, nil
}

func (g *gormStore) deactivateByID(ctx context.Context, id uuid.UUID, at time.Time) (Session, bool, error) {
	var m sessionRecordModel
	err := g.orm.WithContext(ctx).First(&m, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Session{}, false, nil
	case err != nil:
		return Session{}, false, err
	}

	if m.IsActive {
		if err := g.orm.WithContext(ctx).Model(&m).
			Updates(map[string]any{"is_active": false, "updated_at": at}).Error; err != nil {
			return Session{}, false, err
		}
		m.IsActive = false
		m.UpdatedAt = at
	}
	return m.toAPI(), true, nil
}

func (g *gormStore) deactivateByToken(ctx context.Context, token string, at time.Time) (Session, bool, error) {
	var m sessionRecordModel
	err := g.orm.WithContext(ctx).Where("session_token = ?", token).First(&m).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Session{}, false, nil
	case err != nil:
		return Session{}, false, err
	}

	if m.IsActive {
		if err := g.orm.WithContext(ctx).Model(&m).
			Updates(map[string]any{"is_active": false, "updated_at": at}).Error; err != nil {
			return Session{}, false, err
		}
		m.IsActive = false
		m.UpdatedAt = at
	}
	return m.toAPI(), true, nil
}

func (g *gormStore) touch(ctx context.Context, token string, at time.Time) (bool, error) {
	res := g.orm.WithContext(ctx).Model(&sessionRecordModel{}).
		Where("session_token = ? AND is_active = ?", token, true).
		Updates(map[string]any{"last_active_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (g *gormStore) listByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	var models []sessionRecordModel
	if err := g.orm.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_active_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAPI())
	}
	return out, nil
}

func (g *gormStore) deviceOwner(ctx context.Context, fingerprint string) (DeviceRegistration, bool, error) {
	var m deviceRegistrationModel
	err := g.orm.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&m).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return DeviceRegistration{}, false, nil
	case err != nil:
		return DeviceRegistration{}, false, err
	}
	return m.toAPI(), true, nil
}

func (g *gormStore) registerDevice(ctx context.Context, fingerprint string, userID uuid.UUID) (DeviceRegistration, error) {
	m := deviceRegistrationModel{
		ID:          uuid.New(),
		Fingerprint: fingerprint,
		UserID:      userID,
	}
	// First registration wins; a later attempt returns the original owner.
	err := g.orm.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		FirstOrCreate(&m).Error
	if err != nil {
		return DeviceRegistration{}, err
	}
	return m.toAPI(), nil
}
