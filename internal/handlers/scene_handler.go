package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vectreal/vectreal-platform-sub000/internal/extraction"
	"github.com/Vectreal/vectreal-platform-sub000/internal/gltf"
	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
	"github.com/Vectreal/vectreal-platform-sub000/internal/services"
)

// SceneHandler defines handlers for scene save and read operations.
type SceneHandler struct {
	Service  *services.SceneService
	validate *validator.Validate
	log      *zap.Logger
}

// NewSceneHandler creates a new SceneHandler with the given SceneService.
func NewSceneHandler(service *services.SceneService, log *zap.Logger) *SceneHandler {
	return &SceneHandler{
		Service:  service,
		validate: validator.New(),
		log:      log.With(zap.String("handler", "SceneHandler")),
	}
}

type saveScenePayload struct {
	SceneID   *string                      `json:"scene_id" validate:"omitempty,uuid"`
	ProjectID string                       `json:"project_id" validate:"required,uuid"`
	UserID    string                       `json:"user_id" validate:"required,uuid"`
	Settings  models.SceneSettings         `json:"settings"`
	Export    *gltf.Export                 `json:"export"`
	Extended  *extendedPayload             `json:"extended"`
	Report    *services.OptimizationReport `json:"report"`
}

type extendedPayload struct {
	Document json.RawMessage `json:"document"`
	AssetIDs []string        `json:"asset_ids" validate:"dive,uuid"`
}

// SaveScene handles POST /scenes/save.
// @Summary Save scene settings and assets
// @Description Persists a new settings version, deduplicating unchanged assets and short-circuiting no-op saves
// @Tags scenes
// @Accept json
// @Produce json
// @Success 200 {object} services.SaveResult "Unchanged, existing version returned"
// @Success 201 {object} services.SaveResult "New version created"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 404 {object} map[string]interface{} "Referenced resource not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /scenes/save [post]
func (h *SceneHandler) SaveScene(c *fiber.Ctx) error {
	var payload saveScenePayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if err := h.validate.Struct(&payload); err != nil {
		return badRequest(c, err.Error())
	}

	req, err := payload.toRequest()
	if err != nil {
		return badRequest(c, err.Error())
	}
	result, err := h.Service.Save(c.Context(), req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	if result.Unchanged {
		return c.JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (p *saveScenePayload) toRequest() (*services.SaveRequest, error) {
	req := &services.SaveRequest{
		Settings: p.Settings,
		Export:   p.Export,
		Report:   p.Report,
	}
	var err error
	if req.ProjectID, err = uuid.Parse(p.ProjectID); err != nil {
		return nil, err
	}
	if req.UserID, err = uuid.Parse(p.UserID); err != nil {
		return nil, err
	}
	if p.SceneID != nil {
		id, err := uuid.Parse(*p.SceneID)
		if err != nil {
			return nil, err
		}
		req.SceneID = &id
	}
	if p.Extended != nil {
		ext := &gltf.ExtendedDocument{Document: p.Extended.Document}
		for _, raw := range p.Extended.AssetIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, err
			}
			ext.AssetIDs = append(ext.AssetIDs, id)
		}
		req.Extended = ext
	}
	return req, nil
}

// SaveFromArchive handles POST /scenes/:id/save/archive with a zipped export bundle.
// @Summary Save scene settings from an archived GLTF export
// @Description Unpacks a zipped export bundle and persists it as a new settings version
// @Tags scenes
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Scene ID"
// @Param archive formData file true "Zipped GLTF export"
// @Param settings formData string true "Settings JSON"
// @Success 201 {object} services.SaveResult "New version created"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /scenes/{id}/save/archive [post]
func (h *SceneHandler) SaveFromArchive(c *fiber.Ctx) error {
	sceneID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid scene id")
	}
	projectID, err := uuid.Parse(c.FormValue("project_id"))
	if err != nil {
		return badRequest(c, "invalid project id")
	}
	userID, err := uuid.Parse(c.FormValue("user_id"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	var settings models.SceneSettings
	if err := json.Unmarshal([]byte(c.FormValue("settings")), &settings); err != nil {
		return badRequest(c, "invalid settings JSON: "+err.Error())
	}
	var report *services.OptimizationReport
	if raw := c.FormValue("report"); raw != "" {
		report = &services.OptimizationReport{}
		if err := json.Unmarshal([]byte(raw), report); err != nil {
			return badRequest(c, "invalid report JSON: "+err.Error())
		}
	}

	fileHeader, err := c.FormFile("archive")
	if err != nil {
		return badRequest(c, "failed to read archive: "+err.Error())
	}
	archivePath := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, archivePath); err != nil {
		h.log.Error("failed to persist uploaded archive", zap.Error(err))
		return internalError(c, err)
	}
	defer os.Remove(archivePath)

	export, err := extraction.ExportFromArchive(c.Context(), archivePath)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.Service.Save(c.Context(), &services.SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settings,
		Export:    export,
		Report:    report,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	if result.Unchanged {
		return c.JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetScene handles GET /scenes/:id to retrieve the aggregate read view.
// @Summary Get a scene aggregate
// @Description Best-effort assembly of metadata, latest settings, assets and stats
// @Tags scenes
// @Produce json
// @Param id path string true "Scene ID"
// @Success 200 {object} services.SceneAggregate "Aggregate view"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id} [get]
func (h *SceneHandler) GetScene(c *fiber.Ctx) error {
	sceneID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid scene id")
	}
	agg, err := h.Service.GetAggregate(c.Context(), sceneID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(agg)
}

// ListVersions handles GET /scenes/:id/versions.
// @Summary List a scene's settings version history
// @Tags scenes
// @Produce json
// @Param id path string true "Scene ID"
// @Success 200 {array} models.SceneSettingsVersion "Version history, oldest first"
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id}/versions [get]
func (h *SceneHandler) ListVersions(c *fiber.Ctx) error {
	sceneID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid scene id")
	}
	versions, err := h.Service.ListVersions(c.Context(), sceneID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(versions)
}

func (h *SceneHandler) errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case services.IsValidation(err):
		return badRequest(c, err.Error())
	case services.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	case services.IsUpload(err):
		h.log.Error("save aborted by upload failure", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	default:
		h.log.Error("scene request failed", zap.Error(err))
		return internalError(c, err)
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": true, "message": message,
	})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": true, "message": err.Error(),
	})
}
