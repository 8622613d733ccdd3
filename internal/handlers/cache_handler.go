package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gltf-export-service/internal/services"
)

// CacheHandler handles cache-related HTTP endpoints
type CacheHandler struct {
	cache *services.CacheStrategy
	log   *zap.Logger
}

// NewCacheHandler creates a new cache handler. cache may be nil, in which case
// the endpoints report that caching is disabled.
func NewCacheHandler(cache *services.CacheStrategy, log *zap.Logger) *CacheHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CacheHandler{cache: cache, log: log}
}

// GetCacheStats handles GET /cache/stats to retrieve cache statistics
// @Summary Get cache statistics
// @Description Get per-layer statistics of the export cache
// @Tags cache
// @Produce json
// @Success 200 {object} services.MultiLayerCacheStats "Cache statistics"
// @Failure 503 {object} map[string]interface{} "Cache disabled"
// @Router /cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *fiber.Ctx) error {
	if h.cache == nil {
		return cacheDisabled(c)
	}
	return c.JSON(h.cache.GetStatistics())
}

// InvalidateExport handles DELETE /cache/exports/:id to remove an export from cache
// @Summary Invalidate cached export
// @Description Remove a specific export from every cache layer
// @Tags cache
// @Param id path string true "Export ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Failure 503 {object} map[string]interface{} "Cache disabled"
// @Router /cache/exports/{id} [delete]
func (h *CacheHandler) InvalidateExport(c *fiber.Ctx) error {
	if h.cache == nil {
		return cacheDisabled(c)
	}
	exportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	if err := h.cache.InvalidateObject(exportID); err != nil {
		h.log.Error("failed to invalidate cache", zap.Stringer("export_id", exportID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to invalidate cache",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearCache handles POST /cache/clear to clear all cached exports
// @Summary Clear entire cache
// @Description Remove all exports from every cache layer
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{} "Cache cleared"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Failure 503 {object} map[string]interface{} "Cache disabled"
// @Router /cache/clear [post]
func (h *CacheHandler) ClearCache(c *fiber.Ctx) error {
	if h.cache == nil {
		return cacheDisabled(c)
	}
	if err := h.cache.ClearAll(); err != nil {
		h.log.Error("failed to clear cache", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to clear cache",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared successfully",
	})
}

func cacheDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   true,
		"message": "cache is disabled",
	})
}
