package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"latebird/internal/types"
)

// Cryptor seals and opens access secrets so they never touch the table in
// plaintext. Implemented by auth.Cryptor.
type Cryptor interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// CredentialRepository provides data access for the user_credentials table.
//
// Schema:
//
//	CREATE TABLE user_credentials (
//	    user_id       TEXT PRIMARY KEY,
//	    handle        TEXT NOT NULL,
//	    display_name  TEXT NOT NULL DEFAULT '',
//	    avatar_url    TEXT NOT NULL DEFAULT '',
//	    access_token  TEXT NOT NULL,
//	    access_secret TEXT NOT NULL, -- sealed by Cryptor
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type CredentialRepository struct {
	db      DBTX
	cryptor Cryptor
}

// NewCredentialRepository creates a repository backed by the given database
// connection and secret cryptor.
func NewCredentialRepository(db DBTX, cryptor Cryptor) *CredentialRepository {
	return &CredentialRepository{db: db, cryptor: cryptor}
}

// Upsert inserts or replaces the credential row for the user. Called on
// every successful authentication handshake so the stored token pair and
// profile metadata always reflect the latest grant.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *types.UserCredential) error {
	sealed, err := r.cryptor.Seal(cred.AccessSecret.Value())
	if err != nil {
		return fmt.Errorf("sealing access secret: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(ctx, `
		INSERT INTO user_credentials (user_id, handle, display_name, avatar_url, access_token, access_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			handle = EXCLUDED.handle,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			access_token = EXCLUDED.access_token,
			access_secret = EXCLUDED.access_secret,
			updated_at = EXCLUDED.updated_at`,
		cred.UserID, cred.Handle, cred.DisplayName, cred.AvatarURL,
		cred.AccessToken.Value(), sealed, now,
	)
	if err != nil {
		return fmt.Errorf("upserting credential for %s: %w", cred.UserID, err)
	}
	return nil
}

// GetByUserID returns the user's credential with the access secret opened,
// or (nil, nil) when no row exists.
func (r *CredentialRepository) GetByUserID(ctx context.Context, userID string) (*types.UserCredential, error) {
	var (
		cred   types.UserCredential
		token  string
		sealed string
	)
	err := r.db.QueryRow(ctx, `
		SELECT user_id, handle, display_name, avatar_url, access_token, access_secret, created_at, updated_at
		FROM user_credentials WHERE user_id = $1`,
		userID,
	).Scan(
		&cred.UserID, &cred.Handle, &cred.DisplayName, &cred.AvatarURL,
		&token, &sealed, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential for %s: %w", userID, err)
	}

	secret, err := r.cryptor.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("opening access secret for %s: %w", userID, err)
	}
	cred.AccessToken = types.SecretString(token)
	cred.AccessSecret = types.SecretString(secret)
	return &cred, nil
}
