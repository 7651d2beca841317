package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

// ErrorCode 将领域错误映射为 HTTP 状态码与稳定的错误码。
func ErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, vfs.ErrPathInvalid):
		return fiber.StatusBadRequest, "path_invalid"
	case errors.Is(err, vfs.ErrResourceNotFound):
		return fiber.StatusNotFound, "resource_not_found"
	case errors.Is(err, vfs.ErrPathNotFound):
		return fiber.StatusNotFound, "path_not_found"
	case errors.Is(err, vfs.ErrDecode):
		return fiber.StatusUnprocessableEntity, "decode_failed"
	case errors.Is(err, vfs.ErrSourceRead):
		return fiber.StatusInternalServerError, "source_read_failed"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// RenderError 输出统一的 JSON 错误体，并按状态码选择日志级别。
func RenderError(c fiber.Ctx, logger logrus.FieldLogger, action string, err error) error {
	status, code := ErrorCode(err)
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"action":     action,
		"status":     status,
		"error_code": code,
		"request_id": RequestID(c),
	})
	if status >= fiber.StatusInternalServerError {
		entry.Error("diagnostics request failed")
	} else {
		entry.Warn("diagnostics request rejected")
	}
	return c.Status(status).JSON(fiber.Map{"error": code})
}
