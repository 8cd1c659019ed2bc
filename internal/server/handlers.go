package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nxsync/nxsync/pkg/clone"
	"github.com/nxsync/nxsync/pkg/domains"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/profilediff"
	"github.com/nxsync/nxsync/pkg/syncer"
	"github.com/nxsync/nxsync/pkg/targets"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// badRequest marks errors caused by the request body rather than the vendor.
type badRequest struct{ error }

// fail maps an operation error to a status code.
func fail(w http.ResponseWriter, err error) {
	var br badRequest
	var apiErr *nextdns.APIError
	switch {
	case errors.As(err, &br),
		errors.Is(err, targets.ErrInsufficientProfiles),
		errors.Is(err, targets.ErrProfilesNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest{err}
	}
	return nil
}

func (s *Server) client(r *http.Request) (nextdns.API, error) {
	return s.newClient(r.Header.Get(apiKeyHeader))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	api, err := s.client(r)
	if err != nil {
		fail(w, err)
		return
	}
	profiles, err := api.ListProfiles(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

type DomainRequest struct {
	Domain     string   `json:"domain"`
	ListType   string   `json:"listType"`
	Action     string   `json:"action"`
	ProfileIDs []string `json:"profileIds"`
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	var req DomainRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	domain, err := domains.Normalize(req.Domain)
	if err != nil {
		fail(w, badRequest{err})
		return
	}
	lt, err := nextdns.ParseListType(req.ListType)
	if err != nil {
		fail(w, badRequest{err})
		return
	}
	action, err := domains.ParseAction(req.Action)
	if err != nil {
		fail(w, badRequest{err})
		return
	}
	api, err := s.client(r)
	if err != nil {
		fail(w, err)
		return
	}

	var res *domains.Result
	err = s.withLock(r.Header.Get(apiKeyHeader), func() error {
		var err error
		res, err = domains.Manage(r.Context(), api, domains.Request{
			Domain: domain, ListType: lt, Action: action, ProfileIDs: req.ProfileIDs, Log: s.log,
		})
		return err
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type SyncRequest struct {
	ProfileIDs []string `json:"profileIds"`
	Target     string   `json:"target"`
	DryRun     bool     `json:"dryRun"`
}

type SyncResponse struct {
	Analysis         *syncer.Analysis `json:"analysis"`
	Target           syncer.Target    `json:"target"`
	OperationCount   int              `json:"operationCount"`
	EstimatedSeconds float64          `json:"estimatedSeconds"`
	Summary          *syncer.Summary  `json:"summary,omitempty"`
}

func (s *Server) analyze(r *http.Request, req SyncRequest) (nextdns.API, SyncResponse, error) {
	target, err := syncer.ParseTarget(req.Target)
	if err != nil {
		return nil, SyncResponse{}, badRequest{err}
	}
	api, err := s.client(r)
	if err != nil {
		return nil, SyncResponse{}, err
	}
	a, err := syncer.Analyze(r.Context(), api, syncer.Options{ProfileIDs: req.ProfileIDs, Delay: s.cfg.Delay, Log: s.log})
	if err != nil {
		return nil, SyncResponse{}, err
	}
	return api, SyncResponse{
		Analysis:         a,
		Target:           target,
		OperationCount:   len(a.Operations(target)),
		EstimatedSeconds: a.EstimatedDuration(target).Seconds(),
	}, nil
}

func (s *Server) handleSyncAnalyze(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	_, resp, err := s.analyze(r, req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncExecute(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}

	var resp SyncResponse
	err := s.withLock(r.Header.Get(apiKeyHeader), func() error {
		api, analyzed, err := s.analyze(r, req)
		if err != nil {
			return err
		}
		summary := syncer.Execute(r.Context(), api, analyzed.Analysis, syncer.Config{
			Target:     analyzed.Target,
			DryRun:     req.DryRun,
			Delay:      s.cfg.Delay,
			RetryDelay: s.cfg.RetryDelay,
			MaxRetries: s.cfg.MaxRetries,
			Log:        s.log,
		})
		analyzed.Summary = &summary
		resp = analyzed
		return nil
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type DiffRequest struct {
	ProfileIDs []string `json:"profileIds"`
	Sections   []string `json:"sections"`
	DiffOnly   bool     `json:"diffOnly"`
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	sections := make([]profilediff.Section, 0, len(req.Sections))
	for _, raw := range req.Sections {
		sec, err := profilediff.ParseSection(raw)
		if err != nil {
			fail(w, badRequest{err})
			return
		}
		sections = append(sections, sec)
	}
	api, err := s.client(r)
	if err != nil {
		fail(w, err)
		return
	}
	res, err := profilediff.Diff(r.Context(), api, profilediff.Request{
		ProfileIDs: req.ProfileIDs, Sections: sections, DiffOnly: req.DiffOnly, Delay: s.cfg.Delay, Log: s.log,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type CopyRequest struct {
	SourceProfileID string `json:"sourceProfileId"`
	DestKey         string `json:"destKey,omitempty"`
	Force           bool   `json:"force"`
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	var req CopyRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.SourceProfileID == "" {
		fail(w, badRequest{errors.New("sourceProfileId is required")})
		return
	}
	src, err := s.client(r)
	if err != nil {
		fail(w, err)
		return
	}
	dst, destKey := src, r.Header.Get(apiKeyHeader)
	if req.DestKey != "" {
		if dst, err = s.newClient(req.DestKey); err != nil {
			fail(w, err)
			return
		}
		destKey = req.DestKey
	}

	var res clone.Result
	err = s.withLock(destKey, func() error {
		res = clone.Copy(r.Context(), src, dst, clone.Options{SourceProfileID: req.SourceProfileID, Force: req.Force, Log: s.log})
		return nil
	})
	if err != nil {
		fail(w, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}
