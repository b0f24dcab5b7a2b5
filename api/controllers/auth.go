package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/api/validators"
	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/pkg/identity"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

type authService interface {
	Login(ctx context.Context, st *auth.State, store auth.Persister, creds identity.Credentials) (*identity.LoginResult, error)
	Logout(ctx context.Context, st *auth.State, store auth.Persister)
	Revalidate(ctx context.Context, st *auth.State, store auth.Persister) bool
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"senha" validate:"required,min=6"`
}

// AuthView is the login state returned by the auth endpoints.
type AuthView struct {
	Authenticated bool           `json:"authenticated"`
	User          *identity.User `json:"user,omitempty"`
	Message       string         `json:"message,omitempty"`
}

func authView(st *auth.State, message string) AuthView {
	view := AuthView{Authenticated: st.IsAuthenticated(), Message: message}
	if view.Authenticated {
		view.User = st.User
	}
	return view
}

// AuthLogin logs the shopper in for the current session.
func AuthLogin(svc authService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if err := validators.ValidateStruct(req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), sess.Auth, sess.Store(), identity.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithUserID(r.Context(), sess.Auth.UserID()), "auth.login.ok")
		responses.WriteSuccess(w, authView(sess.Auth, result.Message))
	}
}

// AuthLogout clears the login even when the remote logout fails.
func AuthLogout(svc authService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		svc.Logout(r.Context(), sess.Auth, sess.Store())
		responses.WriteSuccess(w, authView(sess.Auth, ""))
	}
}

// AuthMe re-checks the stored token before answering.
func AuthMe(svc authService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if sess.Auth.Token != "" {
			svc.Revalidate(r.Context(), sess.Auth, sess.Store())
		}
		responses.WriteSuccess(w, authView(sess.Auth, ""))
	}
}
