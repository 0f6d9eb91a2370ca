// common.go
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
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-minisdb/internal/middleware"
	"github.com/localnerve/jam-build-minisdb/internal/pose"
	"github.com/localnerve/jam-build-minisdb/internal/types"
)

// getIdentity extracts the authenticated identity from context
// (set by auth middleware)
func getIdentity(c *fiber.Ctx) (*types.Identity, error) {
	v := c.Locals(middleware.IdentityKey)
	if v == nil {
		return nil, fmt.Errorf("identity not found in context")
	}

	ident, ok := v.(*types.Identity)
	if !ok || ident.Subject == "" {
		return nil, fmt.Errorf("invalid identity data format")
	}

	return ident, nil
}

// parsePoseQuery reads the five camera pose fields from query parameters.
// All five are required; quantization happens in the service layer.
func parsePoseQuery(c *fiber.Ctx) (pose.Pose, error) {
	var p pose.Pose
	fields := []struct {
		name string
		dst  *float64
	}{
		{"lat", &p.Lat},
		{"lng", &p.Lng},
		{"heading", &p.Heading},
		{"pitch", &p.Pitch},
		{"fov", &p.Fov},
	}

	for _, f := range fields {
		raw := c.Query(f.name, "")
		if raw == "" {
			return p, fmt.Errorf("missing query parameter '%s'", f.name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("invalid query parameter '%s'", f.name)
		}
		*f.dst = v
	}

	return p, nil
}
