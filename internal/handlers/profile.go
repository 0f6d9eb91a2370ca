// profile.go
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

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-minisdb/internal/services"
	"github.com/localnerve/jam-build-minisdb/internal/utils"
	"gorm.io/gorm"
)

// ProfileHandler handles user profile routes
type ProfileHandler struct {
	DB *gorm.DB
}

// GetMyProfile handles GET /api/profile
// @Summary Get the caller's profile
// @Description Get the caller's profile. 204 when no profile has been created yet.
// @Tags Profile
// @Accept json
// @Produce json
// @Success 200 {object} models.UserProfile
// @Success 204
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /profile [get]
func (h *ProfileHandler) GetMyProfile(c *fiber.Ctx) error {
	ident, err := getIdentity(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "profile.authorization.user")
	}

	profile, err := services.GetProfile(h.DB, ident.Subject)
	if err != nil {
		if err.Error() == "not found" {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getMyProfile")
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}

// UpsertProfile handles POST /api/profile
// @Summary Save the caller's profile
// @Description Save nickname, visibility and avatar. Nickname must be unique; invalid names get 400, taken names get 409.
// @Tags Profile
// @Accept json
// @Produce json
// @Param body body object true "Profile fields"
// @Success 200 {object} models.UserProfile
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /profile [post]
func (h *ProfileHandler) UpsertProfile(c *fiber.Ctx) error {
	ident, err := getIdentity(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "profile.authorization.user")
	}

	var body struct {
		Nickname string `json:"nickname"`
		IsPublic *bool  `json:"isPublic"`
		Avatar   string `json:"avatar"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input", "profile.validation.input")
	}

	// Omitted visibility means public
	isPublic := true
	if body.IsPublic != nil {
		isPublic = *body.IsPublic
	}

	profile, err := services.UpsertProfile(h.DB, ident.Subject, body.Nickname, isPublic, body.Avatar)
	if err != nil {
		if strings.Contains(err.Error(), "E_NICKNAME_TAKEN") {
			return utils.NicknameConflictResponse(c, err.Error())
		}
		if strings.Contains(err.Error(), "E_NICKNAME_INVALID") {
			return utils.ValidationErrorResponse(c, err.Error(), "profile.validation.nickname")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "upsertProfile")
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}

// EnsureProfile handles POST /api/profile/ensure
// @Summary Ensure the caller has a profile
// @Description Create the caller's profile from identity claims when absent; fill empty fields otherwise. Never fails on nickname derivation.
// @Tags Profile
// @Accept json
// @Produce json
// @Success 200 {object} models.UserProfile
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /profile/ensure [post]
func (h *ProfileHandler) EnsureProfile(c *fiber.Ctx) error {
	ident, err := getIdentity(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "profile.authorization.user")
	}

	profile, err := services.EnsureProfileFromIdentity(h.DB, *ident)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "ensureProfile")
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}

// AttachAvatar handles POST /api/profile/avatar
// @Summary Attach an avatar image
// @Description Set the caller's avatar, creating the profile first when none exists.
// @Tags Profile
// @Accept json
// @Produce json
// @Param body body object true "Avatar image URL"
// @Success 200 {object} models.UserProfile
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /profile/avatar [post]
func (h *ProfileHandler) AttachAvatar(c *fiber.Ctx) error {
	ident, err := getIdentity(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "profile.authorization.user")
	}

	var body struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input", "profile.validation.input")
	}
	if strings.TrimSpace(body.ImageURL) == "" {
		return utils.ValidationErrorResponse(c, "imageUrl is required", "profile.validation.input")
	}

	profile, err := services.AttachAvatar(h.DB, *ident, body.ImageURL)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "attachAvatar")
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}
