// profile_service.go
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
	"strings"

	"github.com/localnerve/jam-build-minisdb/internal/models"
	"github.com/localnerve/jam-build-minisdb/internal/nickname"
	"github.com/localnerve/jam-build-minisdb/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fallbackNickname seeds derivation when no identity claim yields a name.
const fallbackNickname = "Explorer"

// reservation is an accepted nickname ready to persist: the display form
// and the normalized key that carries the uniqueness constraint.
type reservation struct {
	Nickname    string
	NicknameKey string
}

// reserveNickname checks candidate for validity and global uniqueness on
// behalf of userID. A nil reservation with nil error means "no assignment
// this round" (soft mode absorbing an invalid or taken name, or an empty
// candidate).
//
// Uniqueness is check-then-write: the surrounding transaction plus the
// unique index on nickname_key close the race between two concurrent
// reservations of the same name. No locking happens here.
func reserveNickname(tx *gorm.DB, candidate, userID string, strict bool) (*reservation, error) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return nil, nil
	}

	if !nickname.IsValid(trimmed) {
		if strict {
			return nil, fmt.Errorf("E_NICKNAME_INVALID - nickname must be %d-%d characters: letters, digits, '.', '_', '-'",
				nickname.MinLen, nickname.MaxLen)
		}
		return nil, nil
	}

	key := nickname.Normalize(trimmed)
	silent := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)})

	taken := false

	var existing models.UserProfile
	err := silent.Where("nickname_key = ?", key).First(&existing).Error
	if err == nil {
		taken = existing.UserID != userID
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if !taken {
		// Legacy rows predate nickname_key, so the index alone cannot
		// prove uniqueness. Scan them, backfilling keys as we go; once
		// no keyless rows remain this pass never finds anything and the
		// scan can be retired.
		var legacy []models.UserProfile
		if err := silent.Where("nickname_key IS NULL AND nickname IS NOT NULL").
			Find(&legacy).Error; err != nil {
			return nil, err
		}
		for i := range legacy {
			legacyKey := nickname.Normalize(*legacy[i].Nickname)
			if legacyKey == "" {
				continue
			}
			// A duplicate legacy key loses to the row that already holds
			// it, which is exactly first-writer-wins. Check before writing
			// so the unique index never fires mid-transaction.
			var held int64
			if err := silent.Model(&models.UserProfile{}).
				Where("nickname_key = ?", legacyKey).Count(&held).Error; err != nil {
				return nil, err
			}
			if held == 0 {
				if err := tx.Model(&legacy[i]).Where("nickname_key IS NULL").
					Update("nickname_key", legacyKey).Error; err != nil {
					return nil, err
				}
			}
			if legacyKey == key && legacy[i].UserID != userID {
				taken = true
			}
		}
	}

	if taken {
		if strict {
			return nil, fmt.Errorf("E_NICKNAME_TAKEN - nickname %q is already in use", trimmed)
		}
		return nil, nil
	}

	return &reservation{Nickname: trimmed, NicknameKey: key}, nil
}

// GetProfile returns the caller's profile, or "not found" when it has not
// been created yet.
func GetProfile(db *gorm.DB, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("not found")
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile is the explicit, user-driven profile save (strict mode).
// Empty nickname input is rejected before normalization; invalid or taken
// nicknames fail with E_NICKNAME_INVALID / E_NICKNAME_TAKEN. Avatar is
// only written when a non-empty value was supplied.
func UpsertProfile(db *gorm.DB, userID, nicknameInput string, isPublic bool, avatar string) (*models.UserProfile, error) {
	if strings.TrimSpace(nicknameInput) == "" {
		return nil, fmt.Errorf("E_NICKNAME_INVALID - nickname is required")
	}
	avatar = strings.TrimSpace(avatar)

	var profile models.UserProfile
	err := db.Transaction(func(tx *gorm.DB) error {
		res, err := reserveNickname(tx, nicknameInput, userID, true)
		if err != nil {
			return err
		}

		silent := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)})
		err = silent.Where("user_id = ?", userID).First(&profile).Error
		if err == gorm.ErrRecordNotFound {
			profile = models.UserProfile{
				UserID:      userID,
				Nickname:    &res.Nickname,
				NicknameKey: &res.NicknameKey,
				IsPublic:    isPublic,
			}
			if avatar != "" {
				profile.Avatar = &avatar
			}
			return tx.Create(&profile).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"nickname":     res.Nickname,
			"nickname_key": res.NicknameKey,
			"is_public":    isPublic,
		}
		if avatar != "" {
			updates["avatar"] = avatar
		}
		if err := tx.Model(&profile).Updates(updates).Error; err != nil {
			return err
		}
		profile.Nickname = &res.Nickname
		profile.NicknameKey = &res.NicknameKey
		profile.IsPublic = isPublic
		if avatar != "" {
			profile.Avatar = &avatar
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// nicknameClaims is the ordered list of identity-claim accessors a
// derived nickname is probed from. First non-empty claim wins.
var nicknameClaims = []func(types.Identity) string{
	func(id types.Identity) string { return id.PreferredUsername },
	func(id types.Identity) string { return id.Nickname },
	func(id types.Identity) string {
		if id.GivenName != "" && id.FamilyName != "" {
			return id.GivenName + " " + id.FamilyName
		}
		return ""
	},
	func(id types.Identity) string { return id.GivenName },
	func(id types.Identity) string { return id.FamilyName },
	func(id types.Identity) string {
		local, _, _ := strings.Cut(id.Email, "@")
		return local
	},
	func(id types.Identity) string { return fallbackNickname },
}

// deriveNicknameCandidate probes the identity claims in order and runs
// the winner through the sanitizer. ok=false when nothing usable remains.
func deriveNicknameCandidate(ident types.Identity) (string, bool) {
	for _, claim := range nicknameClaims {
		base := strings.TrimSpace(claim(ident))
		if base == "" {
			continue
		}
		if candidate, ok := nickname.SanitizeAutoCandidate(base); ok {
			return candidate, true
		}
	}
	return "", false
}

// ensureProfileTx creates the caller's profile inside tx if absent, or
// fills currently-empty nickname/avatar fields, using soft-mode
// derivation throughout. It never fails on derivation: a profile with no
// nickname and no avatar is a valid outcome.
func ensureProfileTx(tx *gorm.DB, ident types.Identity) (*models.UserProfile, error) {
	silent := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)})

	var profile models.UserProfile
	err := silent.Where("user_id = ?", ident.Subject).First(&profile).Error

	avatar := strings.TrimSpace(ident.Picture)

	if err == gorm.ErrRecordNotFound {
		profile = models.UserProfile{
			UserID:   ident.Subject,
			IsPublic: true,
		}
		if candidate, ok := deriveNicknameCandidate(ident); ok {
			res, rerr := reserveNickname(tx, candidate, ident.Subject, false)
			if rerr != nil {
				return nil, rerr
			}
			if res != nil {
				profile.Nickname = &res.Nickname
				profile.NicknameKey = &res.NicknameKey
			}
		}
		if avatar != "" {
			profile.Avatar = &avatar
		}
		if err := tx.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}

	// Present: only fill what is empty, never overwrite.
	updates := map[string]interface{}{}
	hasNickname := profile.Nickname != nil && strings.TrimSpace(*profile.Nickname) != ""
	if hasNickname && (profile.NicknameKey == nil || *profile.NicknameKey == "") {
		// Legacy row with a nickname but no normalized key: the owner's
		// own ensure is the natural place to land it. Skip when another
		// row already holds the key; first writer wins.
		if key := nickname.Normalize(*profile.Nickname); key != "" {
			var held int64
			if err := silent.Model(&models.UserProfile{}).
				Where("nickname_key = ?", key).Count(&held).Error; err != nil {
				return nil, err
			}
			if held == 0 {
				updates["nickname_key"] = key
				profile.NicknameKey = &key
			}
		}
	}
	if !hasNickname {
		if candidate, ok := deriveNicknameCandidate(ident); ok {
			res, rerr := reserveNickname(tx, candidate, ident.Subject, false)
			if rerr != nil {
				return nil, rerr
			}
			if res != nil {
				updates["nickname"] = res.Nickname
				updates["nickname_key"] = res.NicknameKey
				profile.Nickname = &res.Nickname
				profile.NicknameKey = &res.NicknameKey
			}
		}
	}
	if (profile.Avatar == nil || strings.TrimSpace(*profile.Avatar) == "") && avatar != "" {
		updates["avatar"] = avatar
		profile.Avatar = &avatar
	}
	if len(updates) > 0 {
		if err := tx.Model(&profile).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &profile, nil
}

// EnsureProfileFromIdentity lazily creates (or tops up) the caller's
// profile from identity claims. Safe to call repeatedly and concurrently;
// derivation failures never fail the caller.
func EnsureProfileFromIdentity(db *gorm.DB, ident types.Identity) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := db.Transaction(func(tx *gorm.DB) error {
		var terr error
		profile, terr = ensureProfileTx(tx, ident)
		return terr
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// AttachAvatar patches the avatar on the caller's profile, creating the
// profile (soft nickname derivation) when none exists yet.
func AttachAvatar(db *gorm.DB, ident types.Identity, imageURL string) (*models.UserProfile, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, fmt.Errorf("E_VALIDATION - imageUrl is required")
	}

	var profile *models.UserProfile
	err := db.Transaction(func(tx *gorm.DB) error {
		ident.Picture = imageURL
		var terr error
		profile, terr = ensureProfileTx(tx, ident)
		if terr != nil {
			return terr
		}
		// ensureProfileTx only fills an empty avatar; an explicit attach
		// always wins.
		if profile.Avatar == nil || *profile.Avatar != imageURL {
			if err := tx.Model(profile).Update("avatar", imageURL).Error; err != nil {
				return err
			}
			profile.Avatar = &imageURL
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}
