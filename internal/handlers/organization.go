package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/services"
)

type OrganizationHandler struct {
	orgs *services.OrganizationService
	log  *logrus.Logger
}

func NewOrganizationHandler(orgs *services.OrganizationService, log *logrus.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, log: log}
}

func (h *OrganizationHandler) Create(c *gin.Context) {
	var req services.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	org, err := h.orgs.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.orgs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, org)
}
