package salesforce

import (
	"context"
	"fmt"
)

// Seed establishes a session at startup without a browser round trip. An
// existing session is kept. It reports whether a session is available.
func Seed(ctx context.Context, store SessionStore, refresher Refresher, refreshToken string) (bool, error) {
	if session, err := store.Get(ctx); err == nil && session.Valid() {
		return true, nil
	}
	if refresher == nil {
		return false, nil
	}
	if _, isOAuth := refresher.(*OAuth); isOAuth && refreshToken == "" {
		return false, nil
	}
	session, err := refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return false, fmt.Errorf("salesforce: seed session: %w", err)
	}
	if session.RefreshToken == "" {
		session.RefreshToken = refreshToken
	}
	if err := store.Save(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}
