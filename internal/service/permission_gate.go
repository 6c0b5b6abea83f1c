package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type gateUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// PermissionGate decides whether a bearer credential may use a panel tab.
type PermissionGate struct {
	tokens tokenValidator
	users  gateUserLookup
	logger *zap.Logger
}

// NewPermissionGate constructs the gate.
func NewPermissionGate(tokens tokenValidator, users gateUserLookup, logger *zap.Logger) *PermissionGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionGate{tokens: tokens, users: users, logger: logger}
}

// Authorize validates the credential, reloads the account and checks the
// capability. Unauthorized is returned for a bad credential or a disabled
// account, Forbidden when the capability is missing. Claims are returned
// whenever the credential itself was valid.
func (g *PermissionGate) Authorize(ctx context.Context, credential string, capability models.Capability) (models.Grant, *models.JWTClaims, error) {
	grant := models.Grant{Capability: capability}
	token := strings.TrimSpace(credential)
	if token == "" {
		return grant, nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing credential")
	}

	claims, err := g.tokens.ValidateToken(token)
	if err != nil {
		return grant, nil, err
	}
	grant.ActorID = claims.UserID

	user, err := g.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if isNoRows(err) {
			return grant, claims, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return grant, claims, internalError(err, "failed to load account")
	}
	if !user.Active {
		return grant, claims, appErrors.Clone(appErrors.ErrUnauthorized, "account is inactive")
	}

	if capability != "" && !user.Can(capability) {
		g.logger.Debug("capability denied",
			zap.String("user_id", user.ID),
			zap.String("capability", string(capability)))
		return grant, claims, appErrors.Clone(appErrors.ErrForbidden, "missing permission: "+string(capability))
	}

	grant.Granted = true
	return grant, claims, nil
}
