package routes

import (
	"github.com/gin-gonic/gin"

	"agenda-medica-server/internal/config"
	"agenda-medica-server/internal/handlers"
	"agenda-medica-server/internal/middleware"
	"agenda-medica-server/internal/store"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, s store.Store, cfg *config.Config) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(s, cfg)
	patientHandler := handlers.NewPatientHandler(s)
	appointmentHandler := handlers.NewAppointmentHandler(s)
	medicalEntryHandler := handlers.NewMedicalEntryHandler(s)
	userHandler := handlers.NewUserHandler(s)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		public.POST("/auth/login", authHandler.Login)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutes := private.Group("/auth")
		{
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.GET("/me", authHandler.Me)
		}

		patientRoutes := private.Group("/patients")
		{
			patientRoutes.GET("", patientHandler.GetPatients)
			patientRoutes.GET("/:id", patientHandler.GetPatientByID)
			patientRoutes.POST("", patientHandler.CreatePatient)
			patientRoutes.PUT("/:id", patientHandler.UpdatePatient)
			patientRoutes.DELETE("/:id", patientHandler.DeletePatient)
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.PUT("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.DELETE("/:id", appointmentHandler.DeleteAppointment)
		}

		medicalEntryRoutes := private.Group("/medical-entries")
		{
			medicalEntryRoutes.GET("", medicalEntryHandler.GetMedicalEntries)
			medicalEntryRoutes.POST("", medicalEntryHandler.CreateMedicalEntry)
			medicalEntryRoutes.PUT("/:id", medicalEntryHandler.UpdateMedicalEntry)
			medicalEntryRoutes.DELETE("/:id", medicalEntryHandler.DeleteMedicalEntry)
		}

		// User administration is admin-only, like the configuration screen it
		// backs. Everyone authenticated may list users.
		userRoutes := private.Group("/users")
		{
			userRoutes.GET("", userHandler.GetUsers)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.AdminOnlyMiddleware())
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
