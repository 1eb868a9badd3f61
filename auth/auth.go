// Package auth resolves the acting user. Every registry, channel and
// directory call takes the verified uid as an explicit parameter; this
// package is the only place where ambient credentials are touched.
package auth

import (
	"context"
	"net/http"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// Authenticate verifies the request's Firebase ID token and returns the
// decoded token; token.UID is the actor id for everything downstream.
func Authenticate(r *http.Request) (*auth.Token, error) {
	ctx := r.Context()
	client, err := newClient(ctx)
	if err != nil {
		return nil, err
	}
	jwtToken, err := BearerTokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	return client.VerifyIDToken(ctx, jwtToken)
}

func newClient(ctx context.Context) (*auth.Client, error) {
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}
