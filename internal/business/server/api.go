package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/esignet-login/internal/login"
	"github.com/openkcm/esignet-login/internal/middleware/requestorigin"
	"github.com/openkcm/esignet-login/internal/origin"
	"github.com/openkcm/esignet-login/internal/serviceerr"
)

const maxBodySize = 64 << 10

// HostRepository persists changes made through the host endpoints.
type HostRepository interface {
	Upsert(ctx context.Context, host origin.HostConfig) error
	Delete(ctx context.Context, origin string) error
}

type apiServer struct {
	manager *login.Manager
	// hostRepo is nil when hosts are not persisted
	hostRepo HostRepository
}

func newAPIServer(manager *login.Manager, hostRepo HostRepository) *apiServer {
	return &apiServer{
		manager:  manager,
		hostRepo: hostRepo,
	}
}

type authorizeRequest struct {
	Origin  string `json:"origin"`
	Referer string `json:"referer"`
}

type authenticateRequest struct {
	SessionID string `json:"session_id"`
	AuthCode  string `json:"auth_code"`
	CSRFToken string `json:"csrf_token"`
}

type errorResponse struct {
	StatusCode   int    `json:"status_code"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (s *apiServer) authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authorizeRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}

	if req.Origin == "" {
		req.Origin, _ = requestorigin.OriginFromContext(ctx)
	}
	if req.Referer == "" {
		req.Referer = requestorigin.RefererFromContext(ctx)
	}
	if req.Origin == "" {
		writeError(ctx, w, serviceerr.New(serviceerr.ErrInvalidRequest, "The field 'origin' is required."))
		return
	}

	resp, err := s.manager.Authorize(ctx, req.Origin, req.Referer)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, resp.StatusCode, resp)
}

func (s *apiServer) authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authenticateRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	resp, err := s.manager.Authenticate(ctx, req.SessionID, req.AuthCode, req.CSRFToken)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, resp.StatusCode, resp)
}

func (s *apiServer) listHosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, login.Response[[]origin.HostConfig]{
		StatusCode: http.StatusOK,
		Message:    "Configured hosts",
		Data:       s.manager.Hosts(),
	})
}

func (s *apiServer) putHost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var host origin.HostConfig
	if err := decodeBody(r, &host, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if host.Origin == "" || host.RedirectURI == "" {
		writeError(ctx, w, serviceerr.New(serviceerr.ErrInvalidRequest, "origin and redirectURI are required"))
		return
	}

	if s.hostRepo != nil {
		if err := s.hostRepo.Upsert(ctx, host); err != nil {
			writeError(ctx, w, err)
			return
		}
	}

	if err := s.manager.AddHost(host.Origin, host.RedirectURI); err != nil {
		writeError(ctx, w, err)
		return
	}

	slogctx.Info(ctx, "Host saved", "origin", host.Origin, "redirect_uri", host.RedirectURI)

	writeJSON(ctx, w, http.StatusOK, login.Response[origin.HostConfig]{
		StatusCode: http.StatusOK,
		Message:    "Host saved",
		Data:       host,
	})
}

func (s *apiServer) deleteHost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hostOrigin := r.URL.Query().Get("origin")
	if hostOrigin == "" {
		writeError(ctx, w, serviceerr.New(serviceerr.ErrInvalidRequest, "The field 'origin' is required."))
		return
	}

	if s.hostRepo != nil {
		if err := s.hostRepo.Delete(ctx, hostOrigin); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
			writeError(ctx, w, err)
			return
		}
	}

	s.manager.RemoveHost(hostOrigin)

	slogctx.Info(ctx, "Host removed", "origin", hostOrigin)

	writeJSON(ctx, w, http.StatusOK, login.Response[any]{
		StatusCode: http.StatusOK,
		Message:    "Host removed",
	})
}

// decodeBody reads a JSON body into v. An empty body is accepted only when
// allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	err := dec.Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	default:
		return errors.Join(serviceerr.New(serviceerr.ErrInvalidRequest, "Invalid request body"), err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var serviceErr *serviceerr.Error
	if !errors.As(err, &serviceErr) {
		serviceErr = serviceerr.ErrUnknown
	}

	status := serviceErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slogctx.Error(ctx, "Request failed", "error", err)
	} else {
		slogctx.Info(ctx, "Request rejected", "error", err)
	}

	writeJSON(ctx, w, status, errorResponse{
		StatusCode:   status,
		Error:        string(serviceErr.Err),
		ErrorMessage: serviceErr.Description,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slogctx.Error(ctx, "Failed to write response", "error", err)
	}
}
