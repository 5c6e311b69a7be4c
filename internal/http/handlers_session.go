package http

import (
	"net/http"

	"sakinah/internal/auth"
	"sakinah/internal/log"
)

type sessionResponse struct {
	Owner      string `json:"owner,omitempty"`
	State      string `json:"state"`
	LoginError string `json:"login_error,omitempty"`
}

func (s *Server) sessionState() sessionResponse {
	resp := sessionResponse{
		Owner: s.ctrl.Owner(),
		State: s.ctrl.State().String(),
	}
	if err := s.ctrl.LoginError(); err != nil {
		resp.LoginError = err.Error()
	}
	return resp
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.sessionState()).Write(w)
}

type signInRequest struct {
	Token string `json:"token"`
}

// handleSignIn accepts the access token either as a bearer header or in the
// body. The owner's rows are loaded before the response is written.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		var req signInRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log.OpStartup, err)
			return
		}
		token = req.Token
	}
	if token == "" {
		UnauthorizedError("missing access token").Write(w)
		return
	}

	owner, err := s.session.SignInToken(token)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Sign-in rejected", "error", err)
		writeError(w, r, log.OpStartup, auth.ErrInvalidToken)
		return
	}
	s.logger.InfoContext(r.Context(), "Signed in", log.FieldOwner, owner)
	NewJSONResponse().Body(s.sessionState()).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.session.SignOut()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
