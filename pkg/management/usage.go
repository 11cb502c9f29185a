package management

import (
	"net/http"
	"strconv"
	"time"

	"keyrelay-hq/keyrelay/pkg/usage"
)

// maxUsageLimit caps the page size of GET /api/usage.
const maxUsageLimit = 1000

func (s *Server) handleListUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := usage.Filter{
		AccountID: q.Get("account_id"),
		Model:     q.Get("model"),
	}

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}
	if filter.Limit > maxUsageLimit {
		filter.Limit = maxUsageLimit
	}
	if filter.Since, ok = timeParam(w, q.Get("since"), "since"); !ok {
		return
	}
	if filter.Until, ok = timeParam(w, q.Get("until"), "until"); !ok {
		return
	}

	records, err := s.deps.Usage.Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*usage.Record{}
	}
	writeJSON(w, http.StatusOK, UsageListResponse{Records: records})
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.deps.Usage.Summary(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []usage.Summary{}
	}
	writeJSON(w, http.StatusOK, UsageSummaryResponse{Accounts: summaries})
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, name+" must be a non-negative integer", name)
		return 0, false
	}
	return n, true
}

// timeParam accepts RFC 3339 timestamps or Unix seconds.
func timeParam(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	writeBadRequest(w, name+" must be an RFC 3339 timestamp or Unix seconds", name)
	return time.Time{}, false
}
