package httpapi

import (
	"errors"
	"net/http"
	"strings"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userBody struct {
	OK   bool                   `json:"ok"`
	User binarystore.PublicUser `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return NewError(http.StatusBadRequest, "Missing credentials", binarystore.ErrMissingCredentials)
	}

	ip, source := binarystore.ClientIP(r.Header)
	res, err := s.engine.Login(r.Context(), binarystore.LoginRequest{
		Email:       in.Email,
		Password:    in.Password,
		IP:          ip,
		UserAgent:   r.UserAgent(),
		ForwardedBy: source,
	})
	if err != nil {
		return err
	}

	session.SetCookie(w, res.Session.ID, s.engine.SessionTTL(), s.engine.SecureCookies())
	writeJSON(w, http.StatusOK, userBody{OK: true, User: res.User.Public()})
	return nil
}

// logout always clears the cookie, even when the revoke fails.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) error {
	if id := session.FromRequest(r); id != "" {
		if err := s.engine.Logout(r.Context(), id); err != nil {
			log.Warn(r.Context()).Err(err).Msg("logout revoke failed")
		}
	}
	session.ClearCookie(w, s.engine.SecureCookies())
	writeJSON(w, http.StatusOK, ok)
	return nil
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) error {
	res := binarystore.AuthResultFromContext(r.Context())
	if res == nil {
		id := session.FromRequest(r)
		if id == "" {
			return NewError(http.StatusUnauthorized, "", nil)
		}
		var err error
		res, err = s.engine.CurrentUser(r.Context(), id)
		if err != nil {
			if !errors.Is(err, binarystore.ErrUnauthorized) {
				log.Warn(r.Context()).Err(err).Msg("session lookup failed")
			}
			return NewError(http.StatusUnauthorized, "", nil)
		}
	}
	writeJSON(w, http.StatusOK, userBody{OK: true, User: res.User.Public()})
	return nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) error {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return NewError(http.StatusBadRequest, "Email and password are required", binarystore.ErrMissingCredentials)
	}

	ip, _ := binarystore.ClientIP(r.Header)
	res, err := s.engine.Register(r.Context(), binarystore.RegisterRequest{
		Email:     in.Email,
		Password:  in.Password,
		Name:      in.Name,
		IP:        ip,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return err
	}

	session.SetCookie(w, res.Session.ID, s.engine.SessionTTL(), s.engine.SecureCookies())
	writeJSON(w, http.StatusOK, userBody{OK: true, User: res.User.Public()})
	return nil
}

// passwordRequest answers the same way whether or not the email belongs
// to an account. Backend failures are logged, not reported.
func (s *Server) passwordRequest(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Email) == "" {
		return NewError(http.StatusBadRequest, "Missing email", nil)
	}

	if _, err := s.engine.RequestPasswordReset(r.Context(), in.Email); err != nil &&
		!errors.Is(err, binarystore.ErrInvalidEmail) {
		log.Warn(r.Context()).Err(err).Msg("password reset request failed")
	}
	writeJSON(w, http.StatusOK, ok)
	return nil
}

func (s *Server) passwordReset(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Token) == "" || in.NewPassword == "" {
		return NewError(http.StatusBadRequest, "Missing fields", nil)
	}

	if err := s.engine.ConfirmPasswordReset(r.Context(), in.Token, in.NewPassword); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, ok)
	return nil
}
