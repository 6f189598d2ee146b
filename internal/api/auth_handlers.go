package api

import (
	"mime"
	"net/http"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/auth"
	"github.com/neexbeast/geoplaces/internal/metrics"
	"github.com/neexbeast/geoplaces/internal/validation"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Signup handles POST /auth/signup and answers 201 with a bearer token.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	u, err := h.auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.log.Info("user signed up", "user_id", u.ID, "role", u.Role)
	h.writeToken(w, r, http.StatusCreated, u)
}

// Login handles POST /auth/login. Credentials arrive as JSON or as an OAuth2
// password grant form.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, err := readLogin(w, r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	u, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if k := apperr.KindOf(err); k == apperr.KindUnauthenticated || k == apperr.KindRateLimited {
			metrics.RecordLoginFailure(err)
		}
		writeError(w, r, h.log, err)
		return
	}
	h.writeToken(w, r, http.StatusOK, u)
}

// Me handles GET /auth/me and GET /users/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if u == nil {
		writeError(w, r, h.log, apperr.Unauthenticated("not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) writeToken(w http.ResponseWriter, r *http.Request, status int, u *auth.User) {
	tok, err := h.auth.Token(u)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, status, tokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func readLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return req, apperr.Wrap(apperr.KindValidation, "invalid form body", err)
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
		return req, validation.Struct(req)
	default:
		err := decodeJSON(w, r, &req)
		return req, err
	}
}
