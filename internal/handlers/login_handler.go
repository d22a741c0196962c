package handlers

import (
	"net/http"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/auth"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid login payload")
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.Role, user.PlantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"role":  user.Role,
		"email": user.Email,
	})
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// Register is only routed when ALLOW_REGISTRATION=true; it exists so a fresh
// deployment can bootstrap its first admin account.
func Register(c *gin.Context) {
	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid registration payload")
		return
	}

	role := input.Role
	switch role {
	case "":
		role = "admin"
	case "admin", "staff", "partner":
	default:
		invalid(c, "Role must be one of admin, staff, partner")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		problem(c, apperr.Duplicate("Register.DuplicateEmail",
			"A user with the email '%s' already exists.", input.Email))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

type AssignUserToPlantRequest struct {
	PlantID uint   `json:"plant_id" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
}

// AssignUserToPlant pins a user (typically a partner) to one plant; the
// plant id then rides along in their token claims and scopes their reads.
func AssignUserToPlant(c *gin.Context) {
	var input AssignUserToPlantRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "plant_id and a valid email are required")
		return
	}

	exists, aerr := plantExists(c, input.PlantID)
	if aerr != nil {
		problem(c, aerr)
		return
	}
	if !exists {
		problem(c, apperr.NotFound("AddUserToPlantCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		problem(c, apperr.NotFound("AddUserToPlantCommand.UserNotFound", "User not found."))
		return
	}

	user.PlantID = input.PlantID
	if err := database.DB.WithContext(c.Request.Context()).Save(&user).Error; err != nil {
		problem(c, apperr.Transaction("AddUserToPlantCommand.SaveFailed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_success": true})
}
