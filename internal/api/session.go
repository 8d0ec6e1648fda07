package api

import (
	"net/http"
	"strings"

	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

// homeFor is where a role lands after sign-in.
func homeFor(role clinic.Role) string {
	if role == clinic.RolePatient {
		return "/my-profile"
	}
	return "/dashboard"
}

// loginPage sends a signed-in caller home and otherwise reports that a
// session is required.
func (h *handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.gate.Current(); ok {
		http.Redirect(w, r, homeFor(id.Role), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
}

// login accepts a JSON body or a urlencoded form with email and password.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse form")
			return
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	res := h.gate.Login(r.Context(), req.Email, req.Password)
	if !res.Success {
		writeJSON(w, http.StatusUnauthorized, LoginResponse{LoginResult: res})
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{LoginResult: res, Redirect: homeFor(res.Identity.Role)})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.gate.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusForbidden, "unauthorized", "you don't have permission to access this page")
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, User: &id})
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())
	http.Redirect(w, r, homeFor(id.Role), http.StatusSeeOther)
}
