package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"
)

// WizardSessionTTL is how long an idle wizard session is kept.
const WizardSessionTTL = 24 * time.Hour

// CreateWizardSession stores data under a fresh random ID.
func (s *Store) CreateWizardSession(ctx context.Context, data []byte) (string, error) {
	id, err := generateToken()
	if err != nil {
		return "", err
	}
	ts := now()
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO wizard_sessions (id, data, created_at, expires_at) VALUES (?, ?, ?, ?)`),
		id, string(data), ts, ts.Add(WizardSessionTTL),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetWizardSession returns the stored data, or nil if the session is
// unknown or expired.
func (s *Store) GetWizardSession(ctx context.Context, id string) ([]byte, error) {
	var (
		data      string
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT data, expires_at FROM wizard_sessions WHERE id = ?`), id,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(expiresAt) {
		_ = s.DeleteWizardSession(ctx, id)
		return nil, nil
	}
	return []byte(data), nil
}

// SaveWizardSession overwrites the data of a session and extends its expiry.
func (s *Store) SaveWizardSession(ctx context.Context, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE wizard_sessions SET data = ?, expires_at = ? WHERE id = ?`),
		string(data), now().Add(WizardSessionTTL), id,
	)
	return err
}

// DeleteWizardSession removes a session.
func (s *Store) DeleteWizardSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM wizard_sessions WHERE id = ?`), id)
	return err
}

// CleanupExpiredSessions removes all expired wizard sessions.
func (s *Store) CleanupExpiredSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM wizard_sessions WHERE expires_at < ?`), now())
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
