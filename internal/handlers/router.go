package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/middleware"
	"FOM-CERTS/internal/services"
)

type Deps struct {
	Organizations *services.OrganizationService
	Templates     *services.TemplateService
	Certificates  *services.CertificateManager
	Documents     *services.DocumentService
	Verifications *services.VerificationLogService
	Log           *logrus.Logger
	AllowOrigins  []string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	if len(d.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.AllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	orgs := NewOrganizationHandler(d.Organizations, d.Log)
	templates := NewTemplateHandler(d.Templates, d.Documents, d.Log)
	certs := NewCertificateHandler(d.Certificates, d.Documents, d.Log)
	verify := NewVerifyHandler(d.Certificates, d.Verifications, d.Log)
	logs := NewLogsHandler(d.Verifications, d.Log)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/verify-certificate", verify.Verify)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/organizations", orgs.Create)
		v1.GET("/organizations/:id", orgs.Get)

		v1.POST("/templates", templates.Save)
		v1.GET("/templates/:templateId", templates.Get)
		v1.GET("/templates/:templateId/placeholders", templates.GetPlaceholders)
		v1.POST("/templates/:templateId/preview", templates.Preview)
		v1.POST("/templates/:templateId/publish", templates.Publish)

		v1.POST("/certificates/issue", certs.Issue)
		v1.GET("/certificates/:id", certs.Get)
		v1.GET("/certificates/:id/download", certs.Download)
		v1.GET("/certificates/:id/download-url", certs.DownloadURL)
		v1.GET("/certificates/:id/qr", certs.QR)
		v1.POST("/certificates/:id/revoke", certs.Revoke)

		v1.GET("/analytics", certs.Analytics)

		v1.GET("/logs/verifications", logs.GetVerificationLogs)
		v1.GET("/logs/verifications/stats", logs.GetVerificationStats)
	}

	return r
}
