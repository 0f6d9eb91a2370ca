package models

import (
	"time"
)

// UserProfile is a user's public identity: one row per user, created
// lazily on first authenticated access. Nickname and avatar may be absent
// when every soft derivation failed; a stored nickname that came through
// the strict path always satisfies the nickname package's validity rules.
//
// NicknameKey holds the normalized (NFKC + case fold) form and carries the
// global uniqueness constraint. It is NULL on legacy rows written before
// the key existed; those rows are backfilled on write by the reservation
// path.
type UserProfile struct {
	ProfileID   uint64    `gorm:"primaryKey;autoIncrement" json:"profileId"`
	UserID      string    `gorm:"type:char(36);not null;uniqueIndex" json:"userId"`
	Nickname    *string   `gorm:"size:64" json:"nickname"`
	NicknameKey *string   `gorm:"size:64;uniqueIndex" json:"-"`
	IsPublic    bool      `gorm:"not null" json:"isPublic"`
	Avatar      *string   `gorm:"size:2048" json:"avatar"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName overrides the table name for UserProfile
func (UserProfile) TableName() string {
	return "user_profiles"
}
