package api

import "time"

// Role is the closed set of account roles known to the platform.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Identity is the server-owned user record. It is replaced wholesale on
// every successful auth operation; only name and avatar change via profile
// updates.
type Identity struct {
	ID        int64      `json:"id"`
	StudentID string     `json:"student_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// TokenPair carries the short-lived access token together with the refresh
// token that can renew it. The two are issued, superseded, and erased as a
// unit, never independently.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse is the body returned by login, register, and refresh.
type AuthResponse struct {
	TokenPair
	User Identity `json:"user"`
}

// Tokens returns the pair portion of the response as a standalone value.
func (r *AuthResponse) Tokens() TokenPair {
	return r.TokenPair
}

type LoginRequest struct {
	StudentID string `json:"student_id"`
	Password  string `json:"password"`
}

type RegisterRequest struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      Role   `json:"role,omitempty"`
}

// ProfileUpdate carries the mutable Identity fields; nil means "leave as is".
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Assignment is a read-model consumed by the assignment views.
type Assignment struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	MaxScore    int        `json:"max_score"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

// Submission is the payload for submitting assignment work.
type Submission struct {
	Content string `json:"content"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// errorBody is the error envelope returned by the API.
type errorBody struct {
	Detail string `json:"detail"`
}
