// miniatures.go
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
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-minisdb/internal/models"
	"github.com/localnerve/jam-build-minisdb/internal/pose"
	"github.com/localnerve/jam-build-minisdb/internal/services"
	"github.com/localnerve/jam-build-minisdb/internal/types"
	"github.com/localnerve/jam-build-minisdb/internal/utils"
	"gorm.io/gorm"
)

// MiniatureHandler handles miniature library routes. DB is the user pool;
// AppDB serves the public pose lookup.
type MiniatureHandler struct {
	DB    *gorm.DB
	AppDB *gorm.DB
}

// saveMiniatureBody is the POST /api/minis request shape. Pose fields
// accept JSON numbers or numeric strings; all five are required, a pose
// cannot be partially specified.
type saveMiniatureBody struct {
	Lat          *types.FlexFloat64 `json:"lat"`
	Lng          *types.FlexFloat64 `json:"lng"`
	Heading      *types.FlexFloat64 `json:"heading"`
	Pitch        *types.FlexFloat64 `json:"pitch"`
	Fov          *types.FlexFloat64 `json:"fov"`
	LocationName string             `json:"locationName"`
	ImageURL     string             `json:"imageUrl"`
	Prompt       string             `json:"prompt"`
	Mode         string             `json:"mode"`
	Name         string             `json:"name"`
	Meta         models.JSON        `json:"meta"`
}

// poseFromBody validates presence of every pose field.
func (b *saveMiniatureBody) poseFromBody() (pose.Pose, error) {
	fields := []struct {
		name  string
		value *types.FlexFloat64
	}{
		{"lat", b.Lat},
		{"lng", b.Lng},
		{"heading", b.Heading},
		{"pitch", b.Pitch},
		{"fov", b.Fov},
	}
	var p pose.Pose
	targets := []*float64{&p.Lat, &p.Lng, &p.Heading, &p.Pitch, &p.Fov}
	for i, f := range fields {
		if f.value == nil {
			return pose.Pose{}, fmt.Errorf("missing body field '%s'", f.name)
		}
		*targets[i] = f.value.Float64()
	}
	return p, nil
}

// SaveMiniature handles POST /api/minis
// @Summary Save a generated miniature
// @Description Save a generated image for a camera pose into the caller's library. Repeat saves of the same pose converge on one shared miniature.
// @Tags Miniatures
// @Accept json
// @Produce json
// @Param body body saveMiniatureBody true "Miniature to save"
// @Success 200 {object} utils.SaveSuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /minis [post]
func (h *MiniatureHandler) SaveMiniature(c *fiber.Ctx) error {
	ident, err := getIdentity(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "minis.authorization.user")
	}

	var body saveMiniatureBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input", "minis.validation.input")
	}

	p, err := body.poseFromBody()
	if err != nil {
		return utils.ValidationErrorResponse(c, err.Error(), "minis.validation.pose")
	}

	body.LocationName = strings.TrimSpace(body.LocationName)
	body.ImageURL = strings.TrimSpace(body.ImageURL)
	if body.LocationName == "" || body.ImageURL == "" {
		return utils.ValidationErrorResponse(c, "locationName and imageUrl are required", "minis.validation.input")
	}
	if !models.ValidMode(body.Mode) {
		return utils.ValidationErrorResponse(c, "invalid mode", "minis.validation.input")
	}

	in := services.SaveMiniatureInput{
		Pose:         p,
		LocationName: body.LocationName,
		ImageURL:     body.ImageURL,
		Prompt:       body.Prompt,
		Mode:         body.Mode,
		Name:         strings.TrimSpace(body.Name),
		Meta:         body.Meta,
	}

	miniatureID, err := services.SaveMiniature(h.DB, ident.Subject, in)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "saveMiniature")
	}

	return utils.SaveSuccessResponse(c, miniatureID)
}

// ListMyMiniatures handles GET /api/minis
// @Summary List the caller's library
// @Description List the caller's saved miniatures, most recently saved first, with public creator profiles attached.
// @Tags Miniatures
// @Accept json
// @Produce json
// @Success 200 {array} services.LibraryEntry
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /minis [get]
func (h *MiniatureHandler) ListMyMiniatures(c *fiber.Ctx) error {
	ident, err := getIdentity(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "minis.authorization.user")
	}

	entries, err := services.ListMyMiniatures(h.DB, ident.Subject)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listMyMiniatures")
	}

	return utils.SuccessResponse(c, entries, fiber.StatusOK)
}

// GetMiniatureByPose handles GET /api/minis/pose (public, no auth)
// @Summary Look up a miniature by camera pose
// @Description Return the canonical miniature for a quantized camera pose, if one exists.
// @Tags Miniatures
// @Accept json
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param heading query number true "Heading"
// @Param pitch query number true "Pitch"
// @Param fov query number true "Field of view"
// @Success 200 {object} models.Miniature
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /minis/pose [get]
func (h *MiniatureHandler) GetMiniatureByPose(c *fiber.Ctx) error {
	p, err := parsePoseQuery(c)
	if err != nil {
		return utils.ValidationErrorResponse(c, err.Error(), "minis.validation.pose")
	}

	mini, err := services.GetMiniatureByPose(h.AppDB, p)
	if err != nil {
		if err.Error() == "not found" {
			return utils.NotFoundResponse(c, "No miniature for that pose")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getMiniatureByPose")
	}

	return utils.SuccessResponse(c, mini, fiber.StatusOK)
}
