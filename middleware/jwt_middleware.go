// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JwtCustomClaims for JWT token
type JwtCustomClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	jwt.StandardClaims
}

// Valid skips the expiry check when ExpiresAt is 0.
func (c JwtCustomClaims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return errors.New("token is expired")
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return errors.New("token used before valid")
	}
	return nil
}

// JWTMiddleware verifies the bearer token and stores its claims in the context.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	if secret == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return echo.NewHTTPError(echo.ErrUnauthorized.Code, "JWT configuration error")
			}
		}
	}

	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey: []byte(secret),
		Claims:     &JwtCustomClaims{},
		// Browsers cannot set headers on a websocket upgrade.
		TokenLookup: "header:" + echo.HeaderAuthorization + ",query:token",
		SuccessHandler: func(c echo.Context) {
			claims := c.Get("user").(*jwt.Token).Claims.(*JwtCustomClaims)
			c.Set("userId", claims.UserID)
			c.Set("userType", claims.UserType)
			c.Set("email", claims.Email)
		},
		ErrorHandler: func(err error) error {
			return echo.NewHTTPError(echo.ErrUnauthorized.Code, "Please provide valid credentials")
		},
	})
}

// GenerateJWT signs an access token. ttl of 0 issues a token without expiry.
func GenerateJWT(secret, userID, email, userType string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is required")
	}
	now := time.Now()
	claims := &JwtCustomClaims{
		UserID:   userID,
		Email:    email,
		UserType: userType,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: now.Unix(),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUserFromToken extracts user information from JWT token
func GetUserFromToken(c echo.Context) *JwtCustomClaims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok {
		return nil
	}
	return claims
}

// ExtractUserType safely extracts the user type from the context
func ExtractUserType(c echo.Context) string {
	if userType, ok := c.Get("userType").(string); ok && userType != "" {
		return userType
	}
	if claims := GetUserFromToken(c); claims != nil {
		return claims.UserType
	}
	return ""
}

func GetUserIDFromToken(c echo.Context) string {
	if userID, ok := c.Get("userId").(string); ok && userID != "" {
		return userID
	}
	if claims := GetUserFromToken(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// UserObjectID returns the caller's id as an ObjectID.
func UserObjectID(c echo.Context) (primitive.ObjectID, error) {
	id := GetUserIDFromToken(c)
	if id == "" {
		return primitive.NilObjectID, errors.New("user id missing from token")
	}
	return primitive.ObjectIDFromHex(id)
}
