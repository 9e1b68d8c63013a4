package flows

import "context"

// ValidateDeps captures access token validation dependencies.
type ValidateDeps struct {
	ParseAccess func(string) (TokenClaims, error)
	IsRevoked   func(ctx context.Context, tokenID string) (bool, error)
	FindByID    func(ctx context.Context, id string) (*AccountRecord, error)
	Errors      Errors
}

// RunValidateAccess verifies an access token and, when a registry is wired,
// that it has not been revoked by logout. The account must still exist and
// be active.
func RunValidateAccess(ctx context.Context, accessToken string, deps ValidateDeps) (*TokenClaims, error) {
	if deps.ParseAccess == nil || deps.FindByID == nil {
		return nil, deps.Errors.Internal(errNotReady)
	}
	if accessToken == "" {
		return nil, deps.Errors.Unauthorized("access token required")
	}

	claims, err := deps.ParseAccess(accessToken)
	if err != nil || claims.AccountID == "" {
		return nil, deps.Errors.Unauthorized("invalid or expired access token")
	}
	if deps.IsRevoked != nil {
		revoked, err := deps.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, deps.Errors.Internal(err)
		}
		if revoked {
			return nil, deps.Errors.Unauthorized("invalid or expired access token")
		}
	}

	acct, err := deps.FindByID(ctx, claims.AccountID)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if acct == nil {
		return nil, deps.Errors.Unauthorized("invalid or expired access token")
	}
	if !acct.Active {
		return nil, deps.Errors.Forbidden("account inactive")
	}
	return &claims, nil
}
