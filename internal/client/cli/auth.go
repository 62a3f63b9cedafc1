package cli

import (
	"context"
	"log"
	"os"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for account details and attempts to create a new
// account. On success the session manager signs the account in.
func (a *App) Register(ctx context.Context) error {
	studentID, err := getSimpleText(a.reader, "Enter student id", os.Stdout)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter full name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", os.Stdout)
	if err != nil {
		return err
	}

	req := api.RegisterRequest{StudentID: studentID, Name: name, Email: email, Password: password}
	if err := a.manager.Register(ctx, req); err != nil {
		log.Printf("Registration unsuccessful: %s", api.Normalize(err))
		return err
	}

	log.Printf("Registered and logged in as %s", a.status())
	return nil
}

// Login prompts for credentials and authenticates through the session
// manager.
func (a *App) Login(ctx context.Context) error {
	studentID, err := getSimpleText(a.reader, "Enter student id", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.manager.Login(ctx, api.LoginRequest{StudentID: studentID, Password: password}); err != nil {
		log.Printf("Login unsuccessful: %s", api.Normalize(err))
		return err
	}

	log.Printf("Login successful")
	return nil
}

// Logout tears the session down; local state is cleared even when the
// server cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	if err := a.manager.Logout(ctx); err != nil {
		return err
	}
	log.Printf("Logged out")
	return nil
}

// Refresh forces a token refresh outside the scheduled alarm.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.manager.Refresh(ctx); err != nil {
		log.Printf("Refresh unsuccessful: %s", api.Normalize(err))
		return err
	}
	log.Printf("Tokens refreshed")
	return nil
}

// Whoami prints the current session's identity.
func (a *App) Whoami(ctx context.Context) error {
	snap := a.manager.Snapshot()
	if !snap.Authenticated || snap.User == nil {
		log.Printf("Not logged in")
		return nil
	}
	log.Printf("%s (%s, role %s)", snap.User.Name, snap.User.StudentID, snap.User.Role)
	return nil
}

// ChangePassword rotates the password; on success the server revokes all
// tokens and the session ends.
func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword("Current password", os.Stdout)
	if err != nil {
		return err
	}
	newPassword, err := getPassword("New password", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.manager.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		log.Printf("Password change unsuccessful: %s", api.Normalize(err))
		return err
	}
	log.Printf("Password changed, please log in again")
	return nil
}

// RevokeAll revokes every outstanding token for the account and logs out.
func (a *App) RevokeAll(ctx context.Context) error {
	if err := a.manager.RevokeAllTokens(ctx); err != nil {
		log.Printf("Revocation unsuccessful: %s", api.Normalize(err))
		return err
	}
	log.Printf("All tokens revoked, please log in again")
	return nil
}
