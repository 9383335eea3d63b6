package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lockerhq/lockerctl/internal/api"
)

// LoginCmd authenticates against the service and stores the session
// tokens for later commands.
type LoginCmd struct {
	ClientFlags

	Username string `arg:"" help:"Account username"`
	Password string `help:"Account password (prompted if omitted)" env:"LOCKERCTL_PASSWORD"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := l.Connect()
	if err != nil {
		return err
	}

	password := l.Password
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	if err := stack.Session.Login(ctx, l.Username, password); err != nil {
		if errors.Is(err, api.ErrInvalidCredentials) {
			return fmt.Errorf("login rejected: check your username and password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	user, ok := stack.Session.CurrentUser()
	if !ok {
		return fmt.Errorf("login succeeded but identity could not be resolved")
	}

	fmt.Printf("Logged in as %s\n", user.Username)
	return nil
}

// LogoutCmd clears the stored session. It never fails and has no remote
// effect.
type LogoutCmd struct {
	ClientFlags
}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := l.Connect()
	if err != nil {
		return err
	}

	stack.Session.Logout()

	fmt.Println("Logged out.")
	return nil
}

// RegisterCmd creates a new account. Session state is untouched; log in
// afterwards to start a session.
type RegisterCmd struct {
	ClientFlags

	Username  string `arg:"" help:"Desired username"`
	Email     string `help:"Email address" required:""`
	Password  string `help:"Account password (prompted if omitted)" env:"LOCKERCTL_PASSWORD"`
	FirstName string `help:"First name"`
	LastName  string `help:"Last name"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := r.Connect()
	if err != nil {
		return err
	}

	password := r.Password
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	user, err := stack.Session.Register(ctx, api.Registration{
		Username:  r.Username,
		Email:     r.Email,
		Password:  password,
		Password2: password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	})
	if err != nil {
		var validationErr *api.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("registration rejected: %s", validationErr.Error())
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Printf("Registered %s. Run 'lockerctl login %s' to start a session.\n", user.Username, user.Username)
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}

	return password, nil
}
