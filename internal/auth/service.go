package auth

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/identity"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

// Identity is the remote user service.
type Identity interface {
	Login(ctx context.Context, creds identity.Credentials) (*identity.LoginResult, error)
	Me(ctx context.Context, token string) (*identity.User, error)
	Logout(ctx context.Context, token string) error
}

// Persister stores the auth blob of one session.
type Persister interface {
	SaveAuth(ctx context.Context, st State) error
	DeleteAuth(ctx context.Context) error
}

// Service logs shoppers in and out of a storefront session.
type Service struct {
	identity Identity
	logg     *logger.Logger
}

func NewService(id Identity, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{identity: id, logg: logg}
}

// Login exchanges credentials for a token and stores it on st.
func (s *Service) Login(ctx context.Context, st *State, store Persister, creds identity.Credentials) (*identity.LoginResult, error) {
	if s.identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity service unavailable")
	}
	creds.Email = strings.TrimSpace(creds.Email)

	res, err := s.identity.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Token) == "" {
		msg := strings.TrimSpace(res.Message)
		if msg == "" {
			msg = "login failed"
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
	}

	st.Set(res.Token, res.User)
	s.save(ctx, st, store)
	s.logg.Info(s.logg.WithUserID(ctx, st.UserID()), "auth.login.succeeded")
	return res, nil
}

// Logout ends the remote session when possible and always clears st.
func (s *Service) Logout(ctx context.Context, st *State, store Persister) {
	if token := st.Token; token != "" && s.identity != nil {
		if err := s.identity.Logout(ctx, token); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.logout.remote_failed")
		}
	}
	st.Clear()
	if store == nil {
		return
	}
	if err := store.DeleteAuth(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.logout.delete_failed")
	}
}

// Revalidate refreshes the user behind st's token. A rejected token clears
// the login; a transport failure keeps it and reports false.
func (s *Service) Revalidate(ctx context.Context, st *State, store Persister) bool {
	if st == nil || st.Token == "" || s.identity == nil {
		return false
	}
	user, err := s.identity.Me(ctx, st.Token)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
			s.logg.Info(ctx, "auth.revalidate.rejected")
			st.Clear()
			if store != nil {
				if delErr := store.DeleteAuth(ctx); delErr != nil {
					s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "auth.revalidate.delete_failed")
				}
			}
			return false
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.revalidate.unavailable")
		return false
	}

	if user != nil {
		st.User = user
	}
	s.save(ctx, st, store)
	return true
}

func (s *Service) save(ctx context.Context, st *State, store Persister) {
	if store == nil {
		return
	}
	if err := store.SaveAuth(ctx, *st); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.persist.failed")
	}
}
