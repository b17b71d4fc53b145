package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voka/internal/models"
	"voka/internal/pkg/auth"
)

// ProcessAuth handles password authentication by verifying credentials and generating a token.
// If the account does not exist, it is created together with its profile.
func (app *App) ProcessAuth(ctx context.Context, req models.AuthRequest) (*models.AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrMissingUsernameOrPassword
	}

	account := &models.Account{
		Username: req.Username,
		Password: req.Password,
	}

	account, err := app.db.CheckAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	if account.ID == uuid.Nil {
		account, err = app.db.CreateAccount(ctx, account)
		if err != nil {
			return nil, err
		}
	}

	profileID, err := app.db.UpsertProfile(ctx, models.ProfileUpsert{AuthID: &account.ID, Name: account.Username})
	if err != nil {
		return nil, err
	}

	return issue(profileID, account.ID.String(), false)
}

// ProcessAnonymousAuth opens a session without credentials. Anonymous players spend hearts
// and cannot buy credits.
func (app *App) ProcessAnonymousAuth(ctx context.Context) (*models.AuthResponse, error) {
	app.expireIdle(time.Now())

	account, err := app.db.CreateAccount(ctx, &models.Account{Anonymous: true})
	if err != nil {
		return nil, err
	}

	profileID, err := app.db.UpsertProfile(ctx, models.ProfileUpsert{AuthID: &account.ID})
	if err != nil {
		return nil, err
	}

	return issue(profileID, account.ID.String(), true)
}

// ProcessZaloAuth exchanges a Zalo Mini App access token for a session bound to the
// profile of that Zalo user.
func (app *App) ProcessZaloAuth(ctx context.Context, req models.ZaloAuthRequest) (*models.AuthResponse, error) {
	if err := app.validateRequest(req); err != nil {
		return nil, err
	}

	identity, err := app.identities.Me(ctx, req.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err)
	}

	profileID, err := app.db.UpsertProfile(ctx, models.ProfileUpsert{
		ZaloID:    &identity.ID,
		Name:      identity.Name,
		AvatarURL: identity.AvatarURL,
	})
	if err != nil {
		return nil, err
	}

	return issue(profileID, "", false)
}

func issue(profileID int64, accountID string, anonymous bool) (*models.AuthResponse, error) {
	token, err := auth.GenerateToken(profileID, accountID, anonymous)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, ProfileID: profileID, Anonymous: anonymous}, nil
}
