package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gltf-export-service/internal/metrics"
	"gltf-export-service/internal/models"
	"gltf-export-service/internal/pipeline"
	"gltf-export-service/internal/scene"
	"gltf-export-service/internal/services"
)

const InvalidUuidError = "invalid UUID"
const ExportNotFoundError = "export not found"

// ExportHandler defines handlers for converting documents and managing stored exports.
type ExportHandler struct {
	Service *services.ExportService
	Log     *zap.Logger
}

// NewExportHandler creates a new ExportHandler with the given ExportService.
func NewExportHandler(service *services.ExportService, log *zap.Logger) *ExportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportHandler{Service: service, Log: log}
}

// CreateExportResponse is returned after an upload was converted and stored.
type CreateExportResponse struct {
	Export   *models.Export  `json:"export"`
	Warnings []scene.Warning `json:"warnings"`
}

// ListExports handles GET /exports to retrieve stored exports, newest first.
// @Summary List exports
// @Description Gets stored exports, newest first
// @Tags exports
// @Produce json
// @Param limit query int false "Maximum number of exports"
// @Param offset query int false "Number of exports to skip"
// @Success 200 {array} models.Export "List of exports"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /exports [get]
func (h *ExportHandler) ListExports(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, err.Error())
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return badRequest(c, err.Error())
	}

	exports, err := h.Service.ListExports(c.UserContext(), limit, offset)
	if err != nil {
		return h.fail(c, err)
	}
	h.Log.Debug("listed exports", zap.Int("count", len(exports)))
	return c.JSON(exports)
}

// GetExport handles GET /exports/:id to retrieve a single export's metadata.
// @Summary Get an export by ID
// @Description Get the metadata of a stored export
// @Tags exports
// @Produce json
// @Param id path string true "Export ID"
// @Success 200 {object} models.Export "Export found"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Export not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /exports/{id} [get]
func (h *ExportHandler) GetExport(c *fiber.Ctx) error {
	exportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}

	export, err := h.Service.GetExport(c.UserContext(), exportID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(export)
}

// CreateExport handles POST /exports to convert an upload and store the result.
// @Summary Convert and store a document
// @Description Upload a decoded document, a .3dm file or an archive holding one. The glTF output is stored and can be downloaded later.
// @Tags exports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document or archive"
// @Param exportSelectedOnly formData bool false "Export only selected objects"
// @Param predicate formData string false "Selection predicate: any, partial or full"
// @Param format formData string false "Output format: gltf or glb"
// @Success 201 {object} CreateExportResponse "Export created"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 422 {object} map[string]interface{} "Conversion failed"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /exports [post]
func (h *ExportHandler) CreateExport(c *fiber.Ctx) error {
	fileHeader, req, err := parseUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	src, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "failed to read file: "+err.Error())
	}
	defer src.Close()

	h.Log.Info("creating export", zap.String("filename", fileHeader.Filename), zap.Int64("bytes", fileHeader.Size))

	export, result, err := h.Service.CreateExport(c.UserContext(), fileHeader.Filename, src, req)
	if err != nil {
		return h.fail(c, err)
	}

	result.Timings.Finalize()
	setHeaders(c, result.Timings)
	return c.Status(fiber.StatusCreated).JSON(CreateExportResponse{Export: export, Warnings: nonNil(result.Warnings)})
}

// Convert handles POST /convert to convert an upload without storing it.
// @Summary Convert a document
// @Description Convert an upload and return the glTF output directly
// @Tags exports
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "Document or archive"
// @Param exportSelectedOnly formData bool false "Export only selected objects"
// @Param predicate formData string false "Selection predicate: any, partial or full"
// @Param format formData string false "Output format: gltf or glb"
// @Success 200 {file} file "glTF or GLB document"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 422 {object} map[string]interface{} "Conversion failed"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /convert [post]
func (h *ExportHandler) Convert(c *fiber.Ctx) error {
	fileHeader, req, err := parseUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	src, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "failed to read file: "+err.Error())
	}
	defer src.Close()

	result, err := h.Service.Convert(c.UserContext(), fileHeader.Filename, src, req)
	if err != nil {
		return h.fail(c, err)
	}

	result.Timings.Finalize()
	setHeaders(c, result.Timings)
	name := strings.TrimSuffix(filepath.Base(fileHeader.Filename), filepath.Ext(fileHeader.Filename))
	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=\"%s%s\"", name, result.Format.Extension()))
	return c.Send(result.Data)
}

// DownloadExport handles GET /exports/:id/download to fetch the stored output.
// @Summary Download an export
// @Description Download the glTF output of a stored export. Served from the cache when possible.
// @Tags exports
// @Produce application/octet-stream
// @Param id path string true "Export ID"
// @Success 200 {file} file "glTF or GLB document"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Export not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /exports/{id}/download [get]
func (h *ExportHandler) DownloadExport(c *fiber.Ctx) error {
	idStr := c.Params("id")
	exportID, err := uuid.Parse(idStr)
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}

	timings := metrics.NewConversionTimings(idStr)
	export, data, err := h.Service.Download(c.UserContext(), exportID, timings)
	if err != nil {
		return h.fail(c, err)
	}
	timings.Finalize()

	setHeaders(c, timings)
	ext := filepath.Ext(export.StorageKey)
	c.Set(fiber.HeaderContentType, export.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=\"%s%s\"", export.ID, ext))
	c.Set(fiber.HeaderContentLength, strconv.Itoa(len(data)))
	c.Set("Cache-Control", "public, max-age=3600")
	c.Set("ETag", fmt.Sprintf("\"%s\"", export.ID))
	return c.Send(data)
}

// DeleteExport handles DELETE /exports/:id to remove an export.
// @Summary Delete an export
// @Description Delete the stored output and metadata of an export
// @Tags exports
// @Param id path string true "Export ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Export not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /exports/{id} [delete]
func (h *ExportHandler) DeleteExport(c *fiber.Ctx) error {
	exportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	if err := h.Service.DeleteExport(c.UserContext(), exportID); err != nil {
		return h.fail(c, err)
	}
	h.Log.Info("deleted export", zap.Stringer("export_id", exportID))
	return c.SendStatus(fiber.StatusNoContent)
}

// fail maps service errors to the JSON error envelope.
func (h *ExportHandler) fail(c *fiber.Ctx, err error) error {
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": true, "message": ExportNotFoundError,
		})
	case errors.Is(err, services.ErrInvalidRequest):
		return badRequest(c, err.Error())
	case errors.As(err, &stageErr) && stageErr.Stage != pipeline.StageWrite:
		h.Log.Warn("conversion failed",
			zap.String("stage", string(stageErr.Stage)),
			zap.Int("object_index", stageErr.ObjectIndex),
			zap.Error(err))
		body := fiber.Map{"error": true, "message": err.Error(), "stage": stageErr.Stage}
		if stageErr.ObjectIndex >= 0 {
			body["objectIndex"] = stageErr.ObjectIndex
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
	}
	h.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": true, "message": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": true, "message": message,
	})
}

func parseUpload(c *fiber.Ctx) (*multipart.FileHeader, services.ExportRequest, error) {
	var req services.ExportRequest
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, req, fmt.Errorf("failed to read file: %w", err)
	}
	if v := c.FormValue("exportSelectedOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, req, fmt.Errorf("invalid exportSelectedOnly value %q", v)
		}
		req.ExportSelectedOnly = &b
	}
	req.Predicate = c.FormValue("predicate")
	req.Format = c.FormValue("format")
	return fileHeader, req, nil
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s value %q", key, v)
	}
	return n, nil
}

func setHeaders(c *fiber.Ctx, timings *metrics.ConversionTimings) {
	for key, value := range timings.GetHeaders() {
		c.Set(key, value)
	}
}

func nonNil(w []scene.Warning) []scene.Warning {
	if w == nil {
		return []scene.Warning{}
	}
	return w
}
