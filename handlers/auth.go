package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"visitauto/services"
	"visitauto/utils"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// AuthHandler authenticates the single configured operator. Credentials come
// from OPERATOR_USER and OPERATOR_PASSWORD_HASH (bcrypt) in the environment.
type AuthHandler struct {
	JWT *services.JWTService
}

func NewAuthHandler(jwt *services.JWTService) *AuthHandler {
	return &AuthHandler{JWT: jwt}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestError(c, "Invalid login request", err)
		return
	}

	operator := os.Getenv("OPERATOR_USER")
	passwordHash := os.Getenv("OPERATOR_PASSWORD_HASH")
	if operator == "" || passwordHash == "" {
		utils.InternalServerError(c, "Operator credentials not configured", nil)
		return
	}

	if req.Username != operator ||
		bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		utils.LogWarn("Failed login attempt", gin.H{"username": req.Username})
		c.JSON(http.StatusUnauthorized, AuthResponse{
			Success: false,
			Message: "Invalid username or password",
		})
		return
	}

	token, err := h.JWT.GenerateToken(operator)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token", err)
		return
	}

	utils.LogInfo("Operator logged in", gin.H{"username": operator})
	c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
	})
}

// AuthMiddleware validates the bearer token and sets the operator context.
func AuthMiddleware(jwt *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			utils.UnauthorizedError(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims, err := jwt.ValidateToken(tokenString)
		if err != nil {
			utils.UnauthorizedError(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("operator", claims.Operator)
		c.Next()
	}
}
