package auth

import (
	"context"

	"github.com/stationdesk/casedesk-backend/internal/utils"
	"gorm.io/gorm"
)

// SessionInfo resolves session cookies for the middleware.
type SessionInfo struct {
	DB *gorm.DB
}

func (si SessionInfo) FindSessionByID(ctx context.Context, id string) (utils.SessionData, error) {
	var session Session
	if err := si.DB.WithContext(ctx).First(&session, "session_id = ?", id).Error; err != nil {
		return utils.SessionData{}, err
	}

	var account Account
	if err := si.DB.WithContext(ctx).Select("user_id", "role").First(&account, "user_id = ?", session.UserID).Error; err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{
		UserID:    session.UserID,
		Role:      account.Role,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
