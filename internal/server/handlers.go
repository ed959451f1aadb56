// File: internal/server/handlers.go
package server

import (
	"errors"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/agent"
)

// messageRequest is the POST /agent/message body. Either Prompt or
// PermissionResponse must be present; PermissionResponse values are folded
// into the marker envelope the reasoning service expects.
type messageRequest struct {
	SessionID          string            `json:"sessionId"`
	Prompt             string            `json:"prompt"`
	PermissionResponse map[string]string `json:"permissionResponse,omitempty"`
}

type stepsResponse struct {
	SessionID string                 `json:"sessionId"`
	StepLog   []schemas.StepLogEntry `json:"stepLog"`
}

type toolsResponse struct {
	Tools []schemas.ToolSpec `json:"tools"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleMessage runs one conversation turn.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := strings.TrimSpace(req.Prompt)
	if text == "" && len(req.PermissionResponse) > 0 {
		formatted, err := agent.FormatPermissionResponse(req.PermissionResponse)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid permission response")
			return
		}
		text = formatted
	}
	if text == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	resp, err := s.controller.HandleMessage(r.Context(), req.SessionID, text)
	if err != nil {
		s.logger.Error("Turn failed", zap.String("session_id", req.SessionID), zap.Error(err))
		if errors.Is(err, agent.ErrMaxIterations) {
			s.writeError(w, http.StatusInternalServerError, "max iterations exceeded")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "reasoning service unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleSteps reports the step log of a session's most recent turn.
func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, ok := s.controller.Store().Get(sessionID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	s.writeJSON(w, http.StatusOK, stepsResponse{
		SessionID: sess.ID(),
		StepLog:   sess.Steps(),
	})
}

// handleTools lists the declared capability vocabulary.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, toolsResponse{Tools: s.controller.Specs()})
}

// handleHealthz is the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
