package management

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/lo"

	"keyrelay-hq/keyrelay/pkg/accounts"
)

// maxBodyBytes caps management request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Accounts.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountListResponse{
		Accounts: lo.Map(list, func(a accounts.Account, _ int) accounts.Account { return a.Redacted() }),
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	acct, err := s.deps.Accounts.Create(r.Context(), req.Name, req.BaseURL, req.APIKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "account created", "account_id", acct.ID, "name", acct.Name)
	s.refreshAccountCount(r)
	if acct.IsActive && s.deps.Observer != nil {
		s.deps.Observer.RecordAccountSwitch(acct.ID)
	}

	w.Header().Set("Location", "/api/accounts/"+acct.ID)
	writeJSON(w, http.StatusCreated, acct.Redacted())
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.deps.Accounts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct.Redacted())
}

func (s *Server) handleActiveAccount(w http.ResponseWriter, r *http.Request) {
	s.writeActive(w, r)
}

// handleActivateAccount activates the account. An unknown id is accepted and
// leaves no account active; the response reports the resulting state.
func (s *Server) handleActivateAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Accounts.Activate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Observer != nil {
		s.deps.Observer.RecordAccountSwitch(id)
	}
	s.writeActive(w, r)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Accounts.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.refreshAccountCount(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeActive(w http.ResponseWriter, r *http.Request) {
	acct, ok, err := s.deps.Accounts.GetActive(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var resp ActiveAccountResponse
	if ok {
		redacted := acct.Redacted()
		resp.Active = &redacted
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refreshAccountCount(r *http.Request) {
	if s.deps.Observer == nil {
		return
	}
	list, err := s.deps.Accounts.List(r.Context())
	if err != nil {
		return
	}
	s.deps.Observer.SetAccountCount(len(list))
}

// decodeJSON reads a JSON body into v, answering 400 on failure. With
// optional set an empty body is accepted.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	switch {
	case err == nil:
		return true
	case optional && errors.Is(err, io.EOF):
		return true
	default:
		writeBadRequest(w, "invalid JSON body: "+err.Error(), "")
		return false
	}
}
