package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// GetAdminIDFromContext extracts the authenticated admin's ID from the
// request context.
func GetAdminIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(adminContextKey).(jwt.MapClaims)
	if !ok {
		return 0, errors.New("admin claims not found in context")
	}

	raw, ok := claims[jwtClaimAdminID]
	if !ok {
		return 0, fmt.Errorf("missing %q claim in token", jwtClaimAdminID)
	}

	// JSON numbers decode as float64.
	idFloat, ok := raw.(float64)
	if !ok || idFloat != float64(int(idFloat)) {
		return 0, fmt.Errorf("invalid %q claim: %v", jwtClaimAdminID, raw)
	}
	id := int(idFloat)
	if id <= 0 {
		return 0, fmt.Errorf("invalid admin ID in claim: %d", id)
	}
	return id, nil
}
