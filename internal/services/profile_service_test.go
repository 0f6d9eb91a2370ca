package services

import (
	"strings"
	"testing"

	"github.com/localnerve/jam-build-minisdb/internal/models"
	"github.com/localnerve/jam-build-minisdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfileNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetProfile(db, "user-none")
	require.Error(t, err)
	assert.Equal(t, "not found", err.Error())
}

func TestUpsertProfileCreateAndUpdate(t *testing.T) {
	db := newTestDB(t)

	profile, err := UpsertProfile(db, "user-1", "Skyline", true, "https://cdn.example.com/a.png")
	require.NoError(t, err)
	require.NotNil(t, profile.Nickname)
	assert.Equal(t, "Skyline", *profile.Nickname)
	require.NotNil(t, profile.NicknameKey)
	assert.Equal(t, "skyline", *profile.NicknameKey)
	assert.True(t, profile.IsPublic)

	// Update keeps the row, changes fields
	profile, err = UpsertProfile(db, "user-1", "Skyline2", false, "")
	require.NoError(t, err)
	assert.Equal(t, "Skyline2", *profile.Nickname)
	assert.False(t, profile.IsPublic)
	// Empty avatar input leaves the stored avatar alone
	require.NotNil(t, profile.Avatar)
	assert.Equal(t, "https://cdn.example.com/a.png", *profile.Avatar)

	var count int64
	db.Model(&models.UserProfile{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpsertProfileCreatesPrivateProfile(t *testing.T) {
	db := newTestDB(t)

	// A profile created private must read back private; the visibility
	// flag is written on the insert, not left to a column default.
	profile, err := UpsertProfile(db, "user-1", "shadow42", false, "")
	require.NoError(t, err)
	assert.False(t, profile.IsPublic)

	stored, err := GetProfile(db, "user-1")
	require.NoError(t, err)
	assert.False(t, stored.IsPublic)
}

func TestUpsertProfileRejectsInvalidNickname(t *testing.T) {
	db := newTestDB(t)

	for _, bad := range []string{"", "   ", "ab", "has space", "waytoolongname"} {
		_, err := UpsertProfile(db, "user-1", bad, true, "")
		require.Error(t, err, "expected rejection for %q", bad)
		assert.True(t, strings.HasPrefix(err.Error(), "E_NICKNAME_INVALID"), "got %v", err)
	}
}

func TestUpsertProfileNicknameConflict(t *testing.T) {
	db := newTestDB(t)

	_, err := UpsertProfile(db, "user-1", "Skyline", true, "")
	require.NoError(t, err)

	// Case-insensitive collision from another user
	_, err = UpsertProfile(db, "user-2", "sKyLiNe", true, "")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "E_NICKNAME_TAKEN"), "got %v", err)

	// The owner can re-save any casing of their own name
	profile, err := UpsertProfile(db, "user-1", "SKYLINE", true, "")
	require.NoError(t, err)
	assert.Equal(t, "SKYLINE", *profile.Nickname)
	assert.Equal(t, "skyline", *profile.NicknameKey)
}

func TestNicknameConflictWithLegacyRow(t *testing.T) {
	db := newTestDB(t)

	// Legacy row: nickname set, no normalized key
	legacyName := "Oldtimer"
	require.NoError(t, db.Create(&models.UserProfile{
		UserID:   "user-legacy",
		Nickname: &legacyName,
		IsPublic: true,
	}).Error)

	_, err := UpsertProfile(db, "user-new", "oldtimer", true, "")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "E_NICKNAME_TAKEN"), "got %v", err)

	// A successful reservation commits the legacy key backfill with it
	_, err = UpsertProfile(db, "user-new", "newcomer", true, "")
	require.NoError(t, err)

	var legacy models.UserProfile
	require.NoError(t, db.Where("user_id = ?", "user-legacy").First(&legacy).Error)
	require.NotNil(t, legacy.NicknameKey)
	assert.Equal(t, "oldtimer", *legacy.NicknameKey)
}

func TestEnsureProfileBackfillsNicknameKey(t *testing.T) {
	db := newTestDB(t)

	// Legacy row: nickname present, normalized key missing
	legacyName := "Oldtimer"
	require.NoError(t, db.Create(&models.UserProfile{
		UserID:   "user-legacy",
		Nickname: &legacyName,
		IsPublic: true,
	}).Error)

	// The owner's own ensure lands the key without touching the nickname
	profile, err := EnsureProfileFromIdentity(db, types.Identity{Subject: "user-legacy"})
	require.NoError(t, err)
	assert.Equal(t, "Oldtimer", *profile.Nickname)
	require.NotNil(t, profile.NicknameKey)
	assert.Equal(t, "oldtimer", *profile.NicknameKey)

	var stored models.UserProfile
	require.NoError(t, db.Where("user_id = ?", "user-legacy").First(&stored).Error)
	require.NotNil(t, stored.NicknameKey)
	assert.Equal(t, "oldtimer", *stored.NicknameKey)
}

func TestEnsureProfileDerivationChain(t *testing.T) {
	db := newTestDB(t)

	// PreferredUsername wins over everything else
	profile, err := EnsureProfileFromIdentity(db, types.Identity{
		Subject:           "user-a",
		Email:             "jane@example.com",
		PreferredUsername: "janey",
		GivenName:         "Jane",
		FamilyName:        "Doe",
	})
	require.NoError(t, err)
	require.NotNil(t, profile.Nickname)
	assert.Equal(t, "janey", *profile.Nickname)
	assert.True(t, profile.IsPublic)

	// Names combine when no username claims exist
	profile, err = EnsureProfileFromIdentity(db, types.Identity{
		Subject:    "user-b",
		GivenName:  "John",
		FamilyName: "Smith",
	})
	require.NoError(t, err)
	require.NotNil(t, profile.Nickname)
	assert.Equal(t, "John_Smith", *profile.Nickname)

	// Email local-part fallback
	profile, err = EnsureProfileFromIdentity(db, types.Identity{
		Subject: "user-c",
		Email:   "wanderer@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, profile.Nickname)
	assert.Equal(t, "wanderer", *profile.Nickname)

	// Nothing usable falls through to the default
	profile, err = EnsureProfileFromIdentity(db, types.Identity{Subject: "user-d"})
	require.NoError(t, err)
	require.NotNil(t, profile.Nickname)
	assert.Equal(t, "Explorer", *profile.Nickname)
}

func TestEnsureProfileSoftConflictYieldsNoNickname(t *testing.T) {
	db := newTestDB(t)

	_, err := UpsertProfile(db, "user-1", "Skyline", true, "")
	require.NoError(t, err)

	profile, err := EnsureProfileFromIdentity(db, types.Identity{
		Subject:           "user-2",
		PreferredUsername: "skyline",
	})
	require.NoError(t, err)
	assert.Nil(t, profile.Nickname, "conflicting derived nickname must be dropped, not error")

	// The profile row still exists for later fills
	_, err = GetProfile(db, "user-2")
	require.NoError(t, err)
}

func TestEnsureProfileFillsOnlyEmptyFields(t *testing.T) {
	db := newTestDB(t)

	// Existing profile with nickname but no avatar
	_, err := UpsertProfile(db, "user-1", "Skyline", true, "")
	require.NoError(t, err)

	profile, err := EnsureProfileFromIdentity(db, types.Identity{
		Subject:           "user-1",
		PreferredUsername: "other",
		Picture:           "https://cdn.example.com/pic.png",
	})
	require.NoError(t, err)

	// Nickname untouched, avatar filled
	assert.Equal(t, "Skyline", *profile.Nickname)
	require.NotNil(t, profile.Avatar)
	assert.Equal(t, "https://cdn.example.com/pic.png", *profile.Avatar)

	// Repeat call changes nothing
	profile, err = EnsureProfileFromIdentity(db, types.Identity{
		Subject:           "user-1",
		PreferredUsername: "another",
		Picture:           "https://cdn.example.com/new.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Skyline", *profile.Nickname)
	assert.Equal(t, "https://cdn.example.com/pic.png", *profile.Avatar)
}

func TestAttachAvatar(t *testing.T) {
	db := newTestDB(t)

	// Creates the profile when absent
	profile, err := AttachAvatar(db, types.Identity{Subject: "user-1", PreferredUsername: "janey"}, "https://cdn.example.com/one.png")
	require.NoError(t, err)
	require.NotNil(t, profile.Avatar)
	assert.Equal(t, "https://cdn.example.com/one.png", *profile.Avatar)
	require.NotNil(t, profile.Nickname)
	assert.Equal(t, "janey", *profile.Nickname)

	// Explicit attach replaces an existing avatar
	profile, err = AttachAvatar(db, types.Identity{Subject: "user-1"}, "https://cdn.example.com/two.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/two.png", *profile.Avatar)

	// Empty input is rejected
	_, err = AttachAvatar(db, types.Identity{Subject: "user-1"}, "   ")
	require.Error(t, err)
}
