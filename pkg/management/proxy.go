package management

import (
	"net/http"
)

func (s *Server) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Proxy.Status())
}

func (s *Server) handleProxyStart(w http.ResponseWriter, r *http.Request) {
	var req StartProxyRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	port := req.Port
	if port == 0 {
		port = s.cfg.ProxyPort
	}
	if port < 0 || port > 65535 {
		writeBadRequest(w, "port must be between 0 and 65535", "port")
		return
	}

	if err := s.deps.Proxy.Start(port); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Proxy.Status())
}

func (s *Server) handleProxyStop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Proxy.Stop(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Proxy.Status())
}
