package models

import (
	"time"
)

// Generation backends a miniature image can come from.
const (
	ModeGemini      = "gemini"
	ModePassthrough = "passthrough"
	ModeVertex      = "vertex"
)

// ValidMode reports whether mode names a known generation backend.
func ValidMode(mode string) bool {
	switch mode {
	case ModeGemini, ModePassthrough, ModeVertex:
		return true
	}
	return false
}

// Miniature is the canonical record for one quantized camera pose.
// The five pose fields are stored already quantized; idx_pose makes the
// one-miniature-per-pose invariant a database guarantee as well as a
// transaction-level one. Rows are append-only apart from the one-time
// created_by backfill.
type Miniature struct {
	MiniatureID  uint64    `gorm:"primaryKey;autoIncrement" json:"miniatureId"`
	Lat          float64   `gorm:"not null;index:idx_pose,unique" json:"lat"`
	Lng          float64   `gorm:"not null;index:idx_pose,unique" json:"lng"`
	Heading      float64   `gorm:"not null;index:idx_pose,unique" json:"heading"`
	Pitch        float64   `gorm:"not null;index:idx_pose,unique" json:"pitch"`
	Fov          float64   `gorm:"not null;index:idx_pose,unique" json:"fov"`
	LocationName string    `gorm:"size:255;not null" json:"locationName"`
	ImageURL     string    `gorm:"size:2048;not null" json:"imageUrl"`
	Prompt       string    `gorm:"type:text" json:"prompt"`
	Mode         string    `gorm:"size:16;not null" json:"mode"`
	CreatedBy    *string   `gorm:"type:char(36);index" json:"createdBy"`
	Meta         JSON      `json:"meta,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

// UserMiniature links a user to a miniature in their library, with an
// optional per-user display name. One link per (user, miniature) pair.
type UserMiniature struct {
	LinkID      uint64    `gorm:"primaryKey;autoIncrement" json:"linkId"`
	UserID      string    `gorm:"type:char(36);not null;index:idx_user_mini,unique" json:"userId"`
	MiniatureID uint64    `gorm:"not null;index:idx_user_mini,unique;index" json:"miniatureId"`
	Name        string    `gorm:"size:255" json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`

	Miniature *Miniature `gorm:"foreignKey:MiniatureID;references:MiniatureID" json:"-"`
}

// TableName overrides the table name for Miniature
func (Miniature) TableName() string {
	return "miniatures"
}

// TableName overrides the table name for UserMiniature
func (UserMiniature) TableName() string {
	return "user_miniatures"
}
