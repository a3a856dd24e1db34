package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDisplayName is used when the provider has no display name.
const DefaultDisplayName = "Admin"

// AdminUser is the user part of an AuthSession.
type AdminUser struct {
	UID         string
	Email       string
	DisplayName string
	Role        AdminRole
	// AvatarURL is empty when the provider has no picture.
	AvatarURL string
}

// AuthSession records that an identity is an authorized admin. It can only be
// built through NewAuthSession and is never mutated afterwards.
type AuthSession struct {
	id         uuid.UUID
	user       AdminUser
	token      string
	resolvedAt time.Time
}

// NewAuthSession builds a session, rejecting any user without an admin role.
func NewAuthSession(user AdminUser, token string) (*AuthSession, error) {
	if !user.Role.IsValid() {
		return nil, invalidSession("role", string(user.Role))
	}
	if strings.TrimSpace(user.UID) == "" {
		return nil, invalidSession("uid", user.UID)
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil, invalidSession("email", user.Email)
	}
	if strings.TrimSpace(user.DisplayName) == "" {
		user.DisplayName = DefaultDisplayName
	}

	return &AuthSession{
		id:         uuid.New(),
		user:       user,
		token:      token,
		resolvedAt: time.Now(),
	}, nil
}

// ID identifies this session value, mostly for log correlation.
func (s *AuthSession) ID() uuid.UUID {
	return s.id
}

// User returns a copy of the session user.
func (s *AuthSession) User() AdminUser {
	return s.user
}

// UID is a shortcut for User().UID
func (s *AuthSession) UID() string {
	return s.user.UID
}

// Role is a shortcut for User().Role
func (s *AuthSession) Role() AdminRole {
	return s.user.Role
}

// Token returns the bearer credential captured at resolution time.
func (s *AuthSession) Token() string {
	return s.token
}

// ResolvedAt is the time the session was constructed.
func (s *AuthSession) ResolvedAt() time.Time {
	return s.resolvedAt
}

// WithToken returns a new session for the same user holding token.
func (s *AuthSession) WithToken(token string) (*AuthSession, error) {
	return NewAuthSession(s.user, token)
}

type sessionUserView struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        AdminRole `json:"role"`
	AvatarURL   *string   `json:"avatarUrl"`
}

type sessionView struct {
	ID         string          `json:"id"`
	User       sessionUserView `json:"user"`
	ResolvedAt time.Time       `json:"resolvedAt"`
}

// MarshalJSON renders the session for display. The token is never included.
func (s *AuthSession) MarshalJSON() ([]byte, error) {
	view := sessionView{
		ID: s.id.String(),
		User: sessionUserView{
			UID:         s.user.UID,
			Email:       s.user.Email,
			DisplayName: s.user.DisplayName,
			Role:        s.user.Role,
		},
		ResolvedAt: s.resolvedAt,
	}
	if s.user.AvatarURL != "" {
		avatar := s.user.AvatarURL
		view.User.AvatarURL = &avatar
	}
	return json.Marshal(view)
}
