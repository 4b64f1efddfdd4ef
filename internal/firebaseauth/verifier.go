// Package firebaseauth verifies Firebase ID tokens for back-office sign-in.
package firebaseauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"kinara/internal/domain"
	applog "kinara/internal/log"
)

// tokenVerifier is the part of *auth.Client the Verifier uses.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type Verifier struct {
	client tokenVerifier
}

// New initialises a Firebase app for projectID. An empty credentialsFile uses
// Application Default Credentials.
func New(ctx context.Context, projectID, credentialsFile string) (*Verifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app init failed: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth init failed: %w", err)
	}
	applog.Info(nil, "firebase_auth_ready", map[string]any{"project": projectID})
	return &Verifier{client: client}, nil
}

func (v *Verifier) Verify(ctx context.Context, idToken string) (domain.Identity, error) {
	idToken = strings.TrimSpace(strings.TrimPrefix(idToken, "Bearer "))
	if idToken == "" {
		return domain.Identity{}, errors.New("empty id token")
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return domain.Identity{}, err
	}
	return identityFromToken(tok)
}

func identityFromToken(tok *auth.Token) (domain.Identity, error) {
	uid := strings.TrimSpace(tok.UID)
	if uid == "" {
		return domain.Identity{}, errors.New("invalid uid in token")
	}
	id := domain.Identity{
		UID:   uid,
		Email: claimStr(tok.Claims, "email"),
		Name:  claimStr(tok.Claims, "name"),
	}
	if id.Name == "" {
		id.Name = claimStr(tok.Claims, "fullName")
	}
	switch v := tok.Claims["admin"].(type) {
	case bool:
		id.Admin = v
	case string:
		id.Admin = strings.EqualFold(v, "true")
	}
	if role := claimStr(tok.Claims, "role"); strings.EqualFold(role, domain.RoleAdmin) {
		id.Admin = true
	}
	return id, nil
}

func claimStr(claims map[string]interface{}, key string) string {
	if s, ok := claims[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
