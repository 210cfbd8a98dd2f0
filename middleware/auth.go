package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID stores the authenticated user's id in ctx.
func WithUserID(ctx context.Context, userID primitive.ObjectID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (primitive.ObjectID, bool) {
	id, ok := ctx.Value(userIDKey).(primitive.ObjectID)
	return id, ok
}

// JWTAuthMiddleware validates the bearer token and attaches the caller's
// user id to the request context.
func JWTAuthMiddleware(tokens *utils.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logging.Logger.Warnf("Event ID: JWT_AUTH_MISSING_HEADER, Description: Authorization header missing for request to %s %s", r.Method, r.URL.Path)
				writeMessage(w, http.StatusUnauthorized, "Authorization header missing")
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == authHeader {
				logging.Logger.Warnf("Event ID: JWT_AUTH_BEARER_PREFIX_MISSING, Description: Bearer prefix missing in Authorization header for request to %s %s", r.Method, r.URL.Path)
				writeMessage(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := Authenticate(tokens, tokenStr)
			if err != nil {
				logging.Logger.Warnf("Event ID: JWT_AUTH_INVALID_TOKEN, Description: Invalid token provided for request to %s %s: %v", r.Method, r.URL.Path, err)
				writeMessage(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// Authenticate validates an access token and returns the user id it carries.
func Authenticate(tokens *utils.TokenManager, tokenStr string) (primitive.ObjectID, error) {
	claims, err := tokens.ValidateToken(tokenStr, utils.PurposeAccess)
	if err != nil {
		return primitive.NilObjectID, err
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, utils.ErrInvalidToken
	}
	return userID, nil
}
