package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/render"
	"FOM-CERTS/internal/services"
)

type PlaceholderResponse struct {
	TemplateID   string   `json:"templateId"`
	Placeholders []string `json:"placeholders"`
}

type PreviewRequest struct {
	Data   map[string]any `json:"data"`
	Format string         `json:"format"`
}

type TemplateHandler struct {
	templates *services.TemplateService
	docs      *services.DocumentService
	log       *logrus.Logger
}

func NewTemplateHandler(templates *services.TemplateService, docs *services.DocumentService, log *logrus.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, docs: docs, log: log}
}

// Save creates a template, or replaces it when the body carries the id of
// an unpublished one.
func (h *TemplateHandler) Save(c *gin.Context) {
	var t models.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, "invalid template definition")
		return
	}

	saved, err := h.templates.SaveTemplate(c.Request.Context(), &t)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.templates.GetTemplate(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TemplateHandler) Publish(c *gin.Context) {
	t, err := h.templates.Publish(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TemplateHandler) GetPlaceholders(c *gin.Context) {
	templateID := c.Param("templateId")
	placeholders, err := h.templates.GetPlaceholders(c.Request.Context(), templateID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if placeholders == nil {
		placeholders = []string{}
	}
	c.JSON(http.StatusOK, PlaceholderResponse{TemplateID: templateID, Placeholders: placeholders})
}

func (h *TemplateHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid preview request")
		return
	}
	format, err := render.ParseFormat(req.Format)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	artifact, err := h.docs.Preview(c.Request.Context(), c.Param("templateId"), req.Data, format)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendArtifact(c, artifact, false)
}
