// Package api contains the outbound request pipeline for the teaching
// assistant backend.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) covering the
//     auth endpoints, the profile endpoints, and the assignment read/submit
//     endpoints.
//  2. A concrete HTTP implementation (see HTTPClient) that attaches a
//     correlation id and the bearer credential to every call, times each
//     dispatch, records performance and error telemetry, and maps error
//     responses to sentinel errors.
//
// # Error Handling
//
// Failures are exposed as *Error values wrapping the shared sentinels in
// internal/common; match them with errors.Is. Transport failures wrap
// ErrUnavailable. The pipeline observes failures but never swallows them.
package api

import "context"

// Client is the API surface consumed by the session manager and the
// domain services. Implementations must be safe for concurrent use and
// honor context cancellation on every call.
type Client interface {
	// Auth endpoints.
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	RevokeAll(ctx context.Context) error

	// Profile endpoints.
	Me(ctx context.Context) (*Identity, error)
	UpdateProfile(ctx context.Context, upd ProfileUpdate) (*Identity, error)

	// Assignment endpoints.
	ListAssignments(ctx context.Context) ([]Assignment, error)
	GetAssignment(ctx context.Context, id string) (*Assignment, error)
	SubmitAssignment(ctx context.Context, id string, sub Submission) error

	// The injected-auth-header slot. Written exclusively by the session
	// manager's transition handlers and the credential store's corruption
	// recovery.
	SetAccessToken(token string)
	ClearAccessToken()
}
