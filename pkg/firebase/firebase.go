// Package firebase wires the Firebase Admin SDK used for federated sign-in
// and for revoking identities of deleted members.
package firebase

import (
	"context"
	"errors"
	"fmt"

	fbapp "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ibaf-upi/ibaf-api/pkg/config"
)

// ErrDisabled is returned when Firebase integration is switched off.
var ErrDisabled = errors.New("firebase integration disabled")

// NewAuthClient initializes the Admin SDK and returns its auth client.
func NewAuthClient(ctx context.Context, cfg config.FirebaseConfig) (*auth.Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	var fbCfg *fbapp.Config
	if cfg.ProjectID != "" {
		fbCfg = &fbapp.Config{ProjectID: cfg.ProjectID}
	}

	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := fbapp.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return client, nil
}

// ErrIdentityNotFound is returned when the provider has no account for a uid.
var ErrIdentityNotFound = errors.New("identity not found")

// Identities adapts the auth client to the narrow operations the API needs.
type Identities struct {
	client *auth.Client
}

// NewIdentities wraps an auth client.
func NewIdentities(client *auth.Client) *Identities {
	return &Identities{client: client}
}

// Delete removes the account with uid.
func (i *Identities) Delete(ctx context.Context, uid string) error {
	if err := i.client.DeleteUser(ctx, uid); err != nil {
		if auth.IsUserNotFound(err) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("delete identity %s: %w", uid, err)
	}
	return nil
}

// ListUIDs pages through every account of the project.
func (i *Identities) ListUIDs(ctx context.Context) ([]string, error) {
	it := i.client.Users(ctx, "")
	var uids []string
	for {
		user, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list identities: %w", err)
		}
		uids = append(uids, user.UID)
	}
	return uids, nil
}
