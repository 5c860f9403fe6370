package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// RoleAdmin may manage any booking
const RoleAdmin = "admin"

// UserContext represents the authenticated rider's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Phone  string    `json:"phone"`
	Roles  []string  `json:"roles"`
}

// Identity converts the context into the identity handed to services
func (u UserContext) Identity() *models.Identity {
	return &models.Identity{
		UserID: u.UserID,
		Email:  u.Email,
		Phone:  u.Phone,
		Roles:  u.Roles,
	}
}

type authFailure struct {
	err     string
	message string
	code    string
}

var errMissingHeader = errors.New("missing authorization header")

// authenticate validates the bearer token of the request
func authenticate(c *gin.Context, jwtService *jwt.Service) (*UserContext, *authFailure, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, &authFailure{"unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER"}, errMissingHeader
	}

	// Check Bearer token format
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, &authFailure{"unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT"},
			errors.New("invalid auth format")
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, &authFailure{"unauthorized", "Token cannot be empty", "INVALID_AUTH_FORMAT"}, errors.New("empty token")
	}

	claims, err := jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &authFailure{"token_expired", "Access token has expired. Please refresh your token.", "TOKEN_EXPIRED"}, err
		}
		return nil, &authFailure{"invalid_token", "Invalid access token", "INVALID_TOKEN"}, err
	}

	return &UserContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Phone:  claims.Phone,
		Roles:  claims.Roles,
	}, nil, nil
}

func rejectAuth(c *gin.Context, failure *authFailure, err error) {
	logrus.WithFields(logrus.Fields{
		"path": c.Request.URL.Path,
		"ip":   c.ClientIP(),
		"code": failure.code,
	}).WithError(err).Warn("Auth failed")

	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   failure.err,
		"message": failure.message,
		"code":    failure.code,
	})
	c.Abort()
}

// AuthMiddleware creates a middleware that requires a valid JWT
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userContext, failure, err := authenticate(c, jwtService)
		if failure != nil {
			rejectAuth(c, failure, err)
			return
		}

		c.Set(UserContextKey, *userContext)
		c.Next()
	}
}

// OptionalAuth lets guests through without a token. A token that is present
// must still be valid.
func OptionalAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userContext, failure, err := authenticate(c, jwtService)
		if errors.Is(err, errMissingHeader) {
			c.Next()
			return
		}
		if failure != nil {
			rejectAuth(c, failure, err)
			return
		}

		c.Set(UserContextKey, *userContext)
		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found. Auth middleware may not be applied.",
				"code":    "MISSING_USER_CONTEXT",
			})
			c.Abort()
			return
		}

		identity := userCtx.Identity()
		for _, requiredRole := range roles {
			if identity.HasRole(requiredRole) {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to access this resource",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
		c.Abort()
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}

// GetIdentity returns the caller's identity, or nil for a guest
func GetIdentity(c *gin.Context) *models.Identity {
	userCtx, ok := GetUserContext(c)
	if !ok {
		return nil
	}
	return userCtx.Identity()
}
