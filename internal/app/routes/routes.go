package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tallpines/campreg/internal/app/controllers"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/app/models/dto"
	"github.com/tallpines/campreg/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	applicationController *controllers.ApplicationController,
	sectionController *controllers.SectionController,
	automationController *controllers.AutomationController,
	auditController *controllers.AuditController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// Health check endpoint (public)
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(200, dto.APIResponse{
			Data: gin.H{"status": "ok"},
		})
	})

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	// Family-facing routes. Every authenticated user owns exactly one
	// application, addressed as "me".
	myApplication := authenticated.Group("/applications/me")
	{
		myApplication.GET("", applicationController.GetMyApplication)
		myApplication.PUT("/responses", applicationController.SaveMyResponse)
		myApplication.POST("/withdraw", applicationController.WithdrawMyApplication)
	}

	// Families read the form layout to render their application.
	authenticated.GET("/sections", sectionController.ListSections)
	authenticated.GET("/sections/:id", sectionController.GetSection)

	// --- Admin routes ---
	admin := authenticated.Group("")
	admin.Use(authMiddleware.RoleRequired(models.RoleAdmin, models.RoleSuperAdmin))
	{
		applications := admin.Group("/applications")
		{
			applications.GET("", applicationController.ListApplications)
			applications.GET("/:id", applicationController.GetApplication)
			applications.GET("/:id/responses", applicationController.GetApplicationResponses)
			applications.POST("/:id/transition", applicationController.TransitionApplication)
			applications.POST("/:id/reactivate", applicationController.ReactivateApplication)
			applications.POST("/:id/payment", applicationController.RecordPayment)
		}

		sections := admin.Group("/sections")
		{
			sections.POST("", sectionController.CreateSection)
			sections.PUT("/:id", sectionController.UpdateSection)
			sections.DELETE("/:id", sectionController.DeactivateSection)
			sections.POST("/:id/questions", sectionController.CreateQuestion)
			sections.PUT("/:id/questions/:questionId", sectionController.UpdateQuestion)
			sections.DELETE("/:id/questions/:questionId", sectionController.DeactivateQuestion)
		}

		admin.GET("/audit", auditController.QueryAuditLog)
		admin.POST("/admin/annual-reset", applicationController.AnnualReset)
	}

	// --- Super admin routes ---
	// Automation configuration reaches every family's inbox, so it stays with
	// the registrar role.
	superAdmin := authenticated.Group("/automations")
	superAdmin.Use(authMiddleware.RoleRequired(models.RoleSuperAdmin))
	{
		superAdmin.GET("", automationController.ListAutomations)
		superAdmin.GET("/:id", automationController.GetAutomation)
		superAdmin.POST("", automationController.CreateAutomation)
		superAdmin.PUT("/:id", automationController.UpdateAutomation)
		superAdmin.DELETE("/:id", automationController.DeleteAutomation)
		superAdmin.POST("/:id/run", automationController.RunAutomation)
		superAdmin.GET("/:id/deliveries", automationController.GetDeliveries)
	}
}
