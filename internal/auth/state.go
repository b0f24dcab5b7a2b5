package auth

import (
	"strconv"
	"strings"

	"github.com/angelmondragon/chronus-storefront/pkg/identity"
)

// State is the shopper's login as persisted under the session's auth key.
type State struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

// IsAuthenticated holds when a token and an active user are present.
func (s *State) IsAuthenticated() bool {
	return s != nil && strings.TrimSpace(s.Token) != "" && s.User != nil && s.User.Active
}

func (s *State) Set(token string, user identity.User) {
	s.Token = token
	s.User = &user
}

func (s *State) Clear() {
	s.Token = ""
	s.User = nil
}

// UserID is the user id as a string, or "" when logged out.
func (s *State) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return strconv.FormatInt(s.User.ID, 10)
}
