package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chat-realtime/internal/config"
	"chat-realtime/internal/database"
	"chat-realtime/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Service validates session tokens issued by the external auth provider.
type Service struct {
	users database.UserRepository
	cfg   *config.Config
}

func NewService(users database.UserRepository, cfg *config.Config) *Service {
	return &Service{
		users: users,
		cfg:   cfg,
	}
}

func (s *Service) ValidateToken(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GetUserFromToken returns the user a valid token belongs to. Every failure
// is reported as models.ErrUnauthenticated.
func (s *Service) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		// Older tokens carry the id in user_id.
		raw, ok := (*claims)["user_id"].(string)
		if !ok || raw == "" {
			return nil, fmt.Errorf("%w: invalid user ID in token", models.ErrUnauthenticated)
		}
		userID = raw
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: lookup user: %w", models.ErrPersistence, err)
	}
	return user, nil
}

// TokenFromRequest reads the token from ?token= or an Authorization bearer header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
