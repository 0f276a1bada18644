// README: Firebase Admin SDK verifier resolving ID tokens to principals through custom claims.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"dropspot/internal/auth"
)

// idTokenVerifier is the slice of the Firebase auth client the verifier uses.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier implements auth.TokenVerifier for Firebase ID tokens carrying the
// user_id, username, is_superuser and permissions custom claims.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier creates a verifier using the Firebase Admin SDK.
// If credentialsFile is empty, application-default credentials are used.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*auth.Principal, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if fbauth.IsIDTokenExpired(err) {
		return nil, auth.ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrUnauthenticated, err)
	}
	p, err := auth.PrincipalFromClaims(token.Claims, "user_id")
	if err != nil {
		return nil, fmt.Errorf("firebase uid %s: %w", token.UID, err)
	}
	if p.Username == "" {
		p.Username, _ = token.Claims["name"].(string)
	}
	return p, nil
}
