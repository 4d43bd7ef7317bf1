// Package services contains application services for the habitsync client.
// This file defines the authentication service: online/offline login,
// register, liveness check, and housekeeping of local (offline) auth
// metadata.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/habitsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/cryptox"
	"github.com/dmitrijs2005/habitsync/internal/dbx"
)

// Offline auth metadata keys.
const (
	keyUsername  = "username"
	keySalt      = "salt"
	keyVerifier  = "verifier"
	keyAccountID = "account_id"
)

var ErrLocalDataNotAvailable = errors.New("local data unavailable")

// AuthClient is the part of the remote client authentication needs.
type AuthClient interface {
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, username string, salt []byte, verifier []byte) (string, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (string, error)
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - OnlineLogin: authenticate against the server and persist offline auth data.
//   - OfflineLogin: derive and verify credentials against locally cached data.
//   - Register: create a new user on the server.
//   - AccountID: the account of the last successful login.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
//   - ClearOfflineData: wipe locally cached auth metadata.
//
// Both logins return the account id.
type AuthService interface {
	OfflineLogin(ctx context.Context, username string, password []byte) (string, error)
	OnlineLogin(ctx context.Context, username string, password []byte) (string, error)
	Register(ctx context.Context, username string, password []byte) error
	AccountID(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

// authService is the concrete AuthService backed by a remote client
// and a local SQL database for offline metadata.
type authService struct {
	client AuthClient
	db     *sql.DB
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
func NewAuthService(client AuthClient, db *sql.DB) AuthService {
	return &authService{client: client, db: db}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

// OfflineLogin derives a master key from (password,salt) stored locally
// and verifies it against the locally cached verifier. If local data is
// missing, returns ErrLocalDataNotAvailable; if verification fails,
// returns common.ErrorUnauthorized.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) (string, error) {
	repo := a.getMetadataRepo()

	saved, err := repo.List(ctx)
	if err != nil {
		return "", fmt.Errorf("read offline data: %w", err)
	}
	savedUsername, savedSalt, savedVerifier := saved[keyUsername], saved[keySalt], saved[keyVerifier]
	if savedUsername == nil || savedSalt == nil || savedVerifier == nil {
		return "", ErrLocalDataNotAvailable
	}
	if string(savedUsername) != username {
		return "", common.ErrorUnauthorized
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, savedSalt)
	defer common.WipeByteArray(masterKeyCandidate)
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	if subtle.ConstantTimeCompare(savedVerifier, verifierCandidate) == 0 {
		return "", common.ErrorUnauthorized
	}
	return string(saved[keyAccountID]), nil
}

// OnlineLogin authenticates against the server and saves offline metadata
// (username, salt, verifier, account id).
func (a *authService) OnlineLogin(ctx context.Context, userName string, password []byte) (string, error) {
	salt, err := a.client.GetSalt(ctx, userName)
	if err != nil {
		return "", fmt.Errorf("get salt error: %w", err)
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(masterKeyCandidate)
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	accountID, err := a.client.Login(ctx, userName, verifierCandidate)
	if err != nil {
		return "", fmt.Errorf("login error: %w", err)
	}

	if err := a.saveOfflineData(ctx, userName, salt, verifierCandidate, accountID); err != nil {
		return "", fmt.Errorf("offline data saving error: %w", err)
	}
	return accountID, nil
}

// saveOfflineData persists the auth metadata required for offline login
// in a single transaction.
func (a *authService) saveOfflineData(ctx context.Context, userName string, salt []byte, verifier []byte, accountID string) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keyUsername, []byte(userName)); err != nil {
			return err
		}
		if err := repo.Set(ctx, keySalt, salt); err != nil {
			return err
		}
		if err := repo.Set(ctx, keyVerifier, verifier); err != nil {
			return err
		}
		return repo.Set(ctx, keyAccountID, []byte(accountID))
	})
}

// Register creates a new account on the server. It generates a random salt,
// derives a master key from the provided password, computes a verifier,
// and sends salt/verifier to the server.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	key := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)
	verifier := cryptox.MakeVerifier(key)

	if _, err := a.client.Register(ctx, username, salt, verifier); err != nil {
		return err
	}
	return nil
}

func (a *authService) AccountID(ctx context.Context) (string, error) {
	v, err := a.getMetadataRepo().Get(ctx, keyAccountID)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

// ClearOfflineData wipes locally cached auth metadata (e.g., on logout).
// Sync progress stored next to it is kept.
func (a *authService) ClearOfflineData(ctx context.Context) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for _, k := range []string{keyUsername, keySalt, keyVerifier, keyAccountID} {
			if err := repo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
