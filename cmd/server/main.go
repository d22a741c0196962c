package main

import (
	"os"
	"time"

	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/handlers"
	"github.com/sachindewan/CoilApplication/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, relying on environment variables")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	database.Connect()

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// --- PUBLIC ROUTES ---
	r.GET("/health", handlers.Health)
	r.POST("/login", handlers.Login)
	r.POST("/enquiry", handlers.CreateEnquiry)
	r.Static("/ProductUploads", "./ProductUploads")

	// Only opens if we explicitly allow it in .env
	if os.Getenv("ALLOW_REGISTRATION") == "true" {
		r.POST("/register", handlers.Register)
		logrus.Warn("Registration route is OPEN. Disable this in production!")
	}

	// --- PROTECTED ROUTES ---
	api := r.Group("/")
	api.Use(middleware.AuthMiddleware())
	{
		// ALL AUTHENTICATED ROLES
		api.GET("/plants", handlers.GetPlants)
		api.GET("/parties", handlers.GetParties)
		api.GET("/rawmaterials", handlers.GetRawMaterials)
		api.GET("/rawmaterialpurchases", handlers.GetRawMaterialPurchases)
		api.GET("/rawmaterialquantity", handlers.GetRawMaterialQuantity)
		api.GET("/expenses", handlers.GetExpenses)
		api.GET("/payments", handlers.GetPayments)
		api.GET("/sales", handlers.GetSales)
		api.GET("/challenges", handlers.GetChallenges)
		api.GET("/challengesstate", handlers.GetChallengesStates)
		api.GET("/outstanding-party-amount/:plantId", handlers.GetOutstandingPartyAmount)
		api.GET("/wastage/availablequantity/:plantId/:rawMaterialId", handlers.GetWastageAvailableQuantity)
		api.GET("/cost/average", handlers.GetAverageCost)
		api.GET("/products", handlers.GetProducts)
		api.GET("/enquiries", handlers.GetEnquiries)

		// STAFF & ADMIN: day-to-day recording
		recorder := api.Group("/")
		recorder.Use(middleware.RequireRole("admin", "staff"))
		{
			recorder.POST("/rawmaterialpurchase", handlers.CreateRawMaterialPurchase)
			recorder.POST("/expenses", handlers.CreateExpense)
			recorder.POST("/payments", handlers.CreatePayment)
			recorder.POST("/sales", handlers.CreateSale)
			recorder.POST("/savewastage", handlers.CreateWastage)
			recorder.POST("/challengesstate", handlers.CreateChallengesState)
			recorder.PUT("/updatechallengestate/:id/closed", handlers.CloseChallengesState)
		}

		// ADMIN ONLY: reference data and catalogue
		admin := api.Group("/")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.POST("/plant", handlers.CreatePlant)
			admin.POST("/party", handlers.CreateParty)
			admin.POST("/rawmaterial", handlers.CreateRawMaterial)
			admin.POST("/challenges", handlers.CreateChallenge)
			admin.POST("/product", handlers.CreateProduct)
			admin.POST("/assigned/user/plant", handlers.AssignUserToPlant)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logrus.WithField("port", port).Info("server starting")
	if err := r.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("server failed to start")
	}
}
