// miniature_service.go
//
// A scalable, high performance Go data service for the jam-build miniatures library
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-minisdb.
// jam-build-minisdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-minisdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-minisdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"fmt"
	"time"

	"github.com/localnerve/jam-build-minisdb/internal/models"
	"github.com/localnerve/jam-build-minisdb/internal/pose"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

// SaveMiniatureInput carries one save request after handler validation.
type SaveMiniatureInput struct {
	Pose         pose.Pose
	LocationName string
	ImageURL     string
	Prompt       string
	Mode         string
	Name         string
	Meta         models.JSON
}

// CreatorProfile is the public subset of a creator's profile attached to
// library entries.
type CreatorProfile struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

// LibraryEntry is one row of a user's library listing: the shared
// miniature plus the per-user link fields.
type LibraryEntry struct {
	MiniatureID   uint64          `json:"miniatureId"`
	LocationName  string          `json:"locationName"`
	Lat           float64         `json:"lat"`
	Lng           float64         `json:"lng"`
	Heading       float64         `json:"heading"`
	Pitch         float64         `json:"pitch"`
	Fov           float64         `json:"fov"`
	ImageURL      string          `json:"imageUrl"`
	Prompt        string          `json:"prompt"`
	Mode          string          `json:"mode"`
	CreatedBy     *string         `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	Name          string          `json:"name"`
	LinkCreatedAt time.Time       `json:"linkCreatedAt"`
	Creator       *CreatorProfile `json:"creatorProfile,omitempty"`
}

// poseQuery scopes a query to one quantized pose via the composite index.
func poseQuery(tx *gorm.DB, key pose.Pose) *gorm.DB {
	q := tx
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(hints.UseIndex("idx_pose"))
	}
	return q.Where("lat = ? AND lng = ? AND heading = ? AND pitch = ? AND fov = ?",
		key.Lat, key.Lng, key.Heading, key.Pitch, key.Fov)
}

// SaveMiniature saves a generated image for a pose on behalf of userID.
//
// The pose is quantized and used as the content key: repeated saves of the
// same view converge on one miniature row no matter who saves or what
// cosmetic metadata they send (first writer wins for image/prompt/mode).
// The caller's library link is created on first save; later saves only
// patch the link's display name when a different non-empty name arrives.
// A found row with no creator gets the caller backfilled exactly once.
func SaveMiniature(db *gorm.DB, userID string, in SaveMiniatureInput) (uint64, error) {
	key := in.Pose.Quantize()
	var miniatureID uint64

	err := db.Transaction(func(tx *gorm.DB) error {
		silent := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)})

		// Lock the canonical row for the duration of the transaction so
		// concurrent saves of the same pose serialize on the find step.
		// SQLite has no row locks; its writes serialize on the database.
		find := poseQuery(silent, key)
		if tx.Dialector.Name() != "sqlite" {
			find = find.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var mini models.Miniature
		err := find.First(&mini).Error
		if err == gorm.ErrRecordNotFound {
			userIDCopy := userID
			mini = models.Miniature{
				Lat:          key.Lat,
				Lng:          key.Lng,
				Heading:      key.Heading,
				Pitch:        key.Pitch,
				Fov:          key.Fov,
				LocationName: in.LocationName,
				ImageURL:     in.ImageURL,
				Prompt:       in.Prompt,
				Mode:         in.Mode,
				CreatedBy:    &userIDCopy,
				Meta:         in.Meta,
			}
			if err := tx.Create(&mini).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else if mini.CreatedBy == nil {
			// Heal legacy rows saved before creator tracking existed.
			// The NULL guard makes the backfill set-once.
			if err := tx.Model(&mini).Where("created_by IS NULL").
				Update("created_by", userID).Error; err != nil {
				return err
			}
		}
		miniatureID = mini.MiniatureID

		// Upsert the (user, miniature) library link
		var link models.UserMiniature
		err = silent.Where("user_id = ? AND miniature_id = ?", userID, miniatureID).
			First(&link).Error
		if err == gorm.ErrRecordNotFound {
			name := in.Name
			if name == "" {
				name = mini.LocationName
			}
			link = models.UserMiniature{
				UserID:      userID,
				MiniatureID: miniatureID,
				Name:        name,
			}
			return tx.Create(&link).Error
		}
		if err != nil {
			return err
		}
		if in.Name != "" && in.Name != link.Name {
			return tx.Model(&link).Update("name", in.Name).Error
		}
		return nil
	})

	return miniatureID, err
}

// GetMiniatureByPose is the unauthenticated read-side of the pose key:
// it returns the canonical miniature for the quantized pose, or "not found".
// It never mutates state.
func GetMiniatureByPose(db *gorm.DB, p pose.Pose) (*models.Miniature, error) {
	key := p.Quantize()

	var mini models.Miniature
	silent := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})
	if err := poseQuery(silent, key).First(&mini).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}
	return &mini, nil
}

// ListMyMiniatures returns the caller's library ordered by the link's own
// creation time descending (personal recency; two users can save the same
// miniature at different times). Links whose miniature row is missing are
// dropped. Creators' profiles are attached only when public.
func ListMyMiniatures(db *gorm.DB, userID string) ([]LibraryEntry, error) {
	silent := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})

	var links []models.UserMiniature
	if err := silent.Where("user_id = ?", userID).
		Order("created_at DESC, link_id DESC").
		Preload("Miniature").
		Find(&links).Error; err != nil {
		return nil, err
	}

	// Collect creator ids for one profile fetch
	creatorIDs := make([]string, 0, len(links))
	seen := make(map[string]struct{})
	for _, link := range links {
		if link.Miniature == nil || link.Miniature.CreatedBy == nil {
			continue
		}
		id := *link.Miniature.CreatedBy
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		creatorIDs = append(creatorIDs, id)
	}

	profilesByUser := make(map[string]*CreatorProfile)
	if len(creatorIDs) > 0 {
		var profiles []models.UserProfile
		if err := silent.Where("user_id IN ? AND is_public = ?", creatorIDs, true).
			Find(&profiles).Error; err != nil {
			return nil, err
		}
		for i := range profiles {
			profilesByUser[profiles[i].UserID] = &CreatorProfile{
				Nickname: profiles[i].Nickname,
				Avatar:   profiles[i].Avatar,
			}
		}
	}

	entries := make([]LibraryEntry, 0, len(links))
	for _, link := range links {
		mini := link.Miniature
		if mini == nil {
			// defensive: a link without its miniature is partial data
			continue
		}

		name := link.Name
		if name == "" {
			name = mini.LocationName
		}

		entry := LibraryEntry{
			MiniatureID:   mini.MiniatureID,
			LocationName:  mini.LocationName,
			Lat:           mini.Lat,
			Lng:           mini.Lng,
			Heading:       mini.Heading,
			Pitch:         mini.Pitch,
			Fov:           mini.Fov,
			ImageURL:      mini.ImageURL,
			Prompt:        mini.Prompt,
			Mode:          mini.Mode,
			CreatedBy:     mini.CreatedBy,
			CreatedAt:     mini.CreatedAt,
			Name:          name,
			LinkCreatedAt: link.CreatedAt,
		}
		if mini.CreatedBy != nil {
			entry.Creator = profilesByUser[*mini.CreatedBy]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
