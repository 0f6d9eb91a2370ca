package utils

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// ValidationErrorResponse sends a 400 for a rejected request body or nickname
func ValidationErrorResponse(c *fiber.Ctx, message, errorType string) error {
	return ErrorResponse(c, message, fiber.StatusBadRequest, errorType)
}

// NicknameConflictResponse sends a nickname uniqueness conflict (409)
func NicknameConflictResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"status":           fiber.StatusConflict,
		"message":          message,
		"ok":               false,
		"nicknameConflict": true,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"url":              c.OriginalURL(),
		"type":             "profile.conflict.nickname",
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// SaveSuccessResponse sends a success response for a miniature save
func SaveSuccessResponse(c *fiber.Ctx, miniatureID uint64) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":     "Success",
		"ok":          true,
		"miniatureId": fmt.Sprintf("%d", miniatureID),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status           int    `json:"status"`
	Message          string `json:"message"`
	Ok               bool   `json:"ok"`
	Timestamp        string `json:"timestamp"`
	URL              string `json:"url"`
	Type             string `json:"type,omitempty"`
	NicknameConflict bool   `json:"nicknameConflict,omitempty"`
}

// SaveSuccessResponseStruct defines the schema for miniature save responses
type SaveSuccessResponseStruct struct {
	Message     string `json:"message"`
	Ok          bool   `json:"ok"`
	MiniatureID string `json:"miniatureId"`
	Timestamp   string `json:"timestamp"`
}
