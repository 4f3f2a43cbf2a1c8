// Package statictoken resolves bearer tokens from a fixed table, configured
// as "token=user:role" pairs separated by commas.
package statictoken

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type Authenticator struct {
	identities map[string]domain.Identity
}

// Parse reads "tok1=alice:admin,tok2=bob:user". A missing role means user.
func Parse(table string) (*Authenticator, error) {
	identities := make(map[string]domain.Identity)
	for item := range strings.SplitSeq(table, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		token, subject, ok := strings.Cut(item, "=")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return nil, fmt.Errorf("invalid auth token entry %q", item)
		}
		userID, role, _ := strings.Cut(subject, ":")
		userID = strings.TrimSpace(userID)
		role = strings.ToLower(strings.TrimSpace(role))
		if userID == "" {
			return nil, fmt.Errorf("auth token entry %q has no user", item)
		}
		switch role {
		case "":
			role = domain.RoleUser
		case domain.RoleAdmin, domain.RoleUser:
		default:
			return nil, fmt.Errorf("auth token entry %q has unknown role %q", item, role)
		}
		if _, dup := identities[token]; dup {
			return nil, fmt.Errorf("duplicate auth token for user %q", userID)
		}
		identities[token] = domain.Identity{UserID: userID, Role: role}
	}
	return &Authenticator{identities: identities}, nil
}

func (a *Authenticator) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	identity, ok := a.identities[token]
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: unknown token", domain.ErrUnauthorized)
	}
	return identity, nil
}

func (a *Authenticator) Len() int {
	return len(a.identities)
}
