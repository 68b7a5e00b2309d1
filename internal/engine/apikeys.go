package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ogmissions/internal/domain"
	"ogmissions/internal/repo"
)

// IssueAPIKey mints a random key for a user. Only the hash is stored; the
// plaintext is returned once to the caller.
func (e *Engine) IssueAPIKey(ctx context.Context, userID int64, name string) (id, key string, err error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return "", "", mapRepoErr(err)
	}
	id = uuid.NewString()
	key = fmt.Sprintf("ogm_%s", uuid.NewString())
	err = e.Repo.InsertAPIKey(ctx, domain.APIKey{
		ID:        id,
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(key),
		CreatedAt: e.Clock.NowTs(),
	})
	if err != nil {
		return "", "", err
	}
	return id, key, nil
}
