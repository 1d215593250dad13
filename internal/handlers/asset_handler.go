package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vectreal/vectreal-platform-sub000/internal/services"
)

// AssetHandler defines handlers for asset download, deletion and folders.
type AssetHandler struct {
	Service *services.AssetService
	log     *zap.Logger
}

// NewAssetHandler creates a new AssetHandler with the given AssetService.
func NewAssetHandler(service *services.AssetService, log *zap.Logger) *AssetHandler {
	return &AssetHandler{Service: service, log: log.With(zap.String("handler", "AssetHandler"))}
}

// DownloadAsset handles GET /assets/:id/download to stream an asset's bytes.
// @Summary Download an asset
// @Tags assets
// @Produce octet-stream
// @Param id path string true "Asset ID"
// @Success 200 {file} binary "Asset bytes"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Asset not found"
// @Router /assets/{id}/download [get]
func (h *AssetHandler) DownloadAsset(c *fiber.Ctx) error {
	assetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid asset id")
	}
	asset, data, err := h.Service.Download(c.Context(), assetID)
	if err != nil {
		if services.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": err.Error(),
			})
		}
		h.log.Error("asset download failed", zap.String("asset_id", assetID.String()), zap.Error(err))
		return internalError(c, err)
	}
	c.Set(fiber.HeaderContentType, asset.MimeType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+asset.Name+`"`)
	return c.Send(data)
}

type bulkDeletePayload struct {
	AssetIDs []string `json:"asset_ids"`
}

// BulkDeleteAssets handles DELETE /assets to remove assets best-effort.
// @Summary Bulk delete assets
// @Description Removes storage objects and rows per item; one failure does not stop the rest
// @Tags assets
// @Accept json
// @Produce json
// @Success 200 {array} services.AssetDeleteResult "Per-item results"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Router /assets [delete]
func (h *AssetHandler) BulkDeleteAssets(c *fiber.Ctx) error {
	var payload bulkDeletePayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if len(payload.AssetIDs) == 0 {
		return badRequest(c, "asset_ids is required")
	}
	ids := make([]uuid.UUID, 0, len(payload.AssetIDs))
	for _, raw := range payload.AssetIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid asset id: "+raw)
		}
		ids = append(ids, id)
	}
	return c.JSON(h.Service.BulkDelete(c.Context(), ids))
}

// FolderPath handles GET /folders/:id/path to return a folder's ancestry.
// @Summary Get a folder's ancestry path
// @Tags folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {array} models.Folder "Path from root to folder"
// @Failure 404 {object} map[string]interface{} "Folder not found"
// @Router /folders/{id}/path [get]
func (h *AssetHandler) FolderPath(c *fiber.Ctx) error {
	folderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid folder id")
	}
	path, err := h.Service.FolderPath(c.Context(), folderID)
	if err != nil {
		if services.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": err.Error(),
			})
		}
		h.log.Error("folder path lookup failed", zap.String("folder_id", folderID.String()), zap.Error(err))
		return internalError(c, err)
	}
	return c.JSON(path)
}
