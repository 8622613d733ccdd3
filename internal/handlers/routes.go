package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// RegisterRoutes mounts the export and cache endpoints on router.
func RegisterRoutes(router fiber.Router, exports *ExportHandler, cache *CacheHandler) {
	router.Get("/exports", exports.ListExports)
	router.Post("/exports", exports.CreateExport)
	router.Get("/exports/:id", exports.GetExport)
	router.Delete("/exports/:id", exports.DeleteExport)
	router.Get("/exports/:id/download", exports.DownloadExport)
	router.Post("/convert", exports.Convert)

	router.Get("/cache/stats", cache.GetCacheStats)
	router.Delete("/cache/exports/:id", cache.InvalidateExport)
	router.Post("/cache/clear", cache.ClearCache)

	router.Get("/swagger/*", swagger.HandlerDefault)

	router.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
}
