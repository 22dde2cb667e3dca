package httpapi

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
)

// minInitPasswordLength applies to the first admin regardless of the
// engine password policy.
const minInitPasswordLength = 8

type initUser struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Role  binarystore.Role `json:"role"`
}

type initBody struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	User    initUser `json:"user"`
}

// readInitForm accepts a JSON body or an urlencoded/multipart form.
func readInitForm(w http.ResponseWriter, r *http.Request) (binarystore.InitializeAdminRequest, error) {
	var in binarystore.InitializeAdminRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body credentials
		if err := decodeJSON(w, r, &body); err != nil {
			return in, err
		}
		in.Name, in.Email, in.Password = body.Name, body.Email, body.Password
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return in, NewError(http.StatusBadRequest, "Invalid form body", err)
		}
		in.Name = r.FormValue("name")
		in.Email = r.FormValue("email")
		in.Password = r.FormValue("password")
	default:
		return in, NewError(http.StatusBadRequest, "Unsupported content type", nil)
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return in, nil
}

// initialize creates the first ADMIN and seeds the system settings.
func (s *Server) initialize(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	done, err := s.engine.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if done {
		return NewError(http.StatusBadRequest, "System already initialized", binarystore.ErrAlreadyInitialized)
	}

	in, err := readInitForm(w, r)
	if err != nil {
		return err
	}
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return NewError(http.StatusBadRequest, "Missing required fields", nil)
	}
	if utf8.RuneCountInString(in.Password) < minInitPasswordLength {
		return NewError(http.StatusBadRequest, "Password must be at least 8 characters", binarystore.ErrPasswordPolicy)
	}

	user, err := s.engine.InitializeAdmin(ctx, in)
	switch {
	case errors.Is(err, binarystore.ErrAccountExists):
		return NewError(http.StatusBadRequest, "Email already in use", err)
	case err != nil:
		return err
	}

	if s.opts.Settings != nil {
		n, err := s.opts.Settings.SeedDefaults(context.WithoutCancel(ctx))
		if err != nil {
			log.Warn(ctx).Err(err).Msg("seeding default settings failed")
		} else {
			log.Info(ctx).Int("keys", n).Msg("seeded default settings")
		}
	}

	writeJSON(w, http.StatusCreated, initBody{
		Success: true,
		Message: "Admin account created",
		User: initUser{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
	return nil
}

// setupStatus is polled by the portal before login; answers are briefly
// cacheable.
func (s *Server) setupStatus(w http.ResponseWriter, r *http.Request) {
	done, err := s.engine.IsInitialized(r.Context())
	if err != nil {
		log.Error(r.Context()).Err(err).Msg("setup status check failed")
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"initialized": false,
			"error":       "STATUS_CHECK_FAILED",
		})
		return
	}
	w.Header().Set("Cache-Control", "s-maxage=5, stale-while-revalidate=60")
	writeJSON(w, http.StatusOK, map[string]bool{"initialized": done})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) error {
	actor := binarystore.AuthResultFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if id == "" {
		return NewError(http.StatusBadRequest, "Missing userId", nil)
	}
	if err := s.engine.DeleteUser(r.Context(), actor.UserID(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, ok)
	return nil
}

type healthBody struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// health runs every check under one deadline. Failure text is reported
// only outside production.
func (s *Server) health(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.HealthTimeout)
	defer cancel()

	body := healthBody{OK: true}
	for name, check := range s.opts.HealthChecks {
		if body.Checks == nil {
			body.Checks = make(map[string]string, len(s.opts.HealthChecks))
		}
		if err := check(ctx); err != nil {
			body.OK = false
			log.Warn(r.Context()).Err(err).Str("check", name).Msg("health check failed")
			if s.opts.Production {
				body.Checks[name] = "unavailable"
			} else {
				body.Checks[name] = err.Error()
			}
			continue
		}
		body.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !body.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
	return nil
}
