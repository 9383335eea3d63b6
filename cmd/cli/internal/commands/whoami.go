package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/lockerhq/lockerctl/internal/credentials"
	"github.com/lockerhq/lockerctl/internal/session"
)

// WhoamiCmd resolves and prints the current identity.
type WhoamiCmd struct {
	ClientFlags
}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := w.Connect()
	if err != nil {
		return err
	}

	if stack.Session.Bootstrap(ctx) != session.StateAuthenticated {
		return fmt.Errorf("not logged in\n\nRun 'lockerctl login <username>' to start a session")
	}

	user, _ := stack.Session.CurrentUser()

	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Email:    %s\n", user.Email)
	if user.FirstName != "" || user.LastName != "" {
		fmt.Printf("Name:     %s %s\n", user.FirstName, user.LastName)
	}
	if user.Role != "" {
		fmt.Printf("Role:     %s\n", user.Role)
	}
	if !user.CreatedAt.IsZero() {
		fmt.Printf("Joined:   %s\n", user.CreatedAt.Format("2006-01-02"))
	}

	return nil
}

// TokenCmd decodes the stored access token and prints its claims.
type TokenCmd struct {
	ClientFlags
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := t.Connect()
	if err != nil {
		return err
	}

	tokens, err := stack.Store.Get()
	if err != nil {
		return fmt.Errorf("failed to read tokens: %w", err)
	}

	info, err := credentials.InspectToken(tokens.Access)
	if err != nil {
		if errors.Is(err, credentials.ErrNoToken) {
			return fmt.Errorf("no session tokens stored\n\nRun 'lockerctl login <username>' to start a session")
		}
		return err
	}

	fmt.Printf("Subject:  %s\n", info.Subject)
	if !info.IssuedAt.IsZero() {
		fmt.Printf("Issued:   %s\n", info.IssuedAt.Format("2006-01-02 15:04:05"))
	}
	if !info.ExpiresAt.IsZero() {
		fmt.Printf("Expires:  %s\n", info.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	if info.Expired() {
		fmt.Println("Status:   expired (will be renewed on next call)")
	} else {
		fmt.Println("Status:   valid")
	}
	if tokens.Refresh != "" {
		fmt.Println("Refresh:  present")
	}

	return nil
}
