package auth

import "time"

const (
	RoleDispatcher = "dispatcher"
	RoleAdmin      = "admin"
)

type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;unique" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

// Account is a desk login. Officers on the roster do not need one.
type Account struct {
	UserID         string    `gorm:"primaryKey" json:"user_id"`
	Username       string    `gorm:"uniqueIndex;not null" json:"username"`
	Password       string    `json:"password,omitempty" gorm:"-"`
	HashedPassword string    `json:"-"`
	Role           string    `gorm:"default:'dispatcher'" json:"role"`
	OfficerID      *string   `json:"officer_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Session) TableName() string { return "desk_sessions" }
func (Account) TableName() string { return "desk_accounts" }
