package httpapi

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
	exportBatchSize = 1000
)

type sessionRow struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	UserEmail    string            `json:"userEmail"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastAccessAt time.Time         `json:"lastAccessAt"`
	ExpiresAt    *time.Time        `json:"expiresAt"`
	UserAgent    *string           `json:"userAgent"`
	IP           *string           `json:"ip"`
	Revoked      bool              `json:"revoked"`
	Meta         map[string]string `json:"meta"`
}

func toRow(l session.Listing) sessionRow {
	row := sessionRow{
		ID:           l.ID,
		UserID:       l.UserID,
		UserEmail:    l.UserEmail,
		CreatedAt:    l.CreatedAt,
		LastAccessAt: l.LastAccessAt,
		ExpiresAt:    l.ExpiresAt,
		Revoked:      l.Revoked,
		Meta:         l.Meta,
	}
	if l.UserAgent != "" {
		ua := l.UserAgent
		row.UserAgent = &ua
	}
	if l.IP != "" {
		ip := l.IP
		row.IP = &ip
	}
	return row
}

type sessionsBody struct {
	OK       bool         `json:"ok"`
	Sessions []sessionRow `json:"sessions"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// listFilter reads email and revoked (true, false or all) from q.
func listFilter(r *http.Request) session.ListFilter {
	q := r.URL.Query()
	f := session.ListFilter{EmailContains: strings.TrimSpace(q.Get("email"))}
	switch q.Get("revoked") {
	case "true":
		v := true
		f.Revoked = &v
	case "false":
		v := false
		f.Revoked = &v
	}
	return f
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	pageSize := min(positiveInt(q.Get("pageSize"), defaultPageSize), maxPageSize)

	filter := listFilter(r)
	if q.Get("export") == "csv" {
		return s.exportSessions(w, r, filter, page, pageSize)
	}

	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	rows, total, err := s.engine.ListSessions(r.Context(), filter)
	if err != nil {
		return err
	}

	out := sessionsBody{
		OK:       true,
		Sessions: make([]sessionRow, 0, len(rows)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, l := range rows {
		out.Sessions = append(out.Sessions, toRow(l))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// exportSessions writes the current page, or with exportAll=true every
// matching row in batches, as CSV. exportLimit caps the row count.
func (s *Server) exportSessions(w http.ResponseWriter, r *http.Request, filter session.ListFilter, page, pageSize int) error {
	q := r.URL.Query()
	limit := positiveInt(q.Get("exportLimit"), 0)

	var rows []session.Listing
	if q.Get("exportAll") == "true" {
		for {
			batch := exportBatchSize
			if limit > 0 {
				batch = min(batch, limit-len(rows))
			}
			filter.Offset = len(rows)
			filter.Limit = batch
			got, total, err := s.engine.ListSessions(r.Context(), filter)
			if err != nil {
				return err
			}
			rows = append(rows, got...)
			if len(got) < batch || len(rows) >= total || (limit > 0 && len(rows) >= limit) {
				break
			}
		}
	} else {
		filter.Offset = (page - 1) * pageSize
		filter.Limit = pageSize
		if limit > 0 {
			filter.Limit = min(pageSize, limit)
		}
		got, _, err := s.engine.ListSessions(r.Context(), filter)
		if err != nil {
			return err
		}
		rows = got
	}

	filename := "sessions-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "userId", "userEmail", "createdAt", "lastAccessAt", "expiresAt", "ip", "userAgent", "revoked"})
	for _, l := range rows {
		expires := ""
		if l.ExpiresAt != nil {
			expires = l.ExpiresAt.UTC().Format(time.RFC3339Nano)
		}
		_ = cw.Write([]string{
			l.ID,
			l.UserID,
			csvCell(l.UserEmail),
			l.CreatedAt.UTC().Format(time.RFC3339Nano),
			l.LastAccessAt.UTC().Format(time.RFC3339Nano),
			expires,
			csvCell(l.IP),
			csvCell(lineBreaks.Replace(l.UserAgent)),
			strconv.FormatBool(l.Revoked),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Warn(r.Context()).Err(err).Msg("session export write failed")
		return nil
	}
	if limit > 0 {
		_, _ = w.Write([]byte("# Export limit: " + strconv.Itoa(limit) + " rows\n"))
	}
	return nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// csvCell neutralizes values a spreadsheet would evaluate as a formula.
func csvCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}

type sessionActionBody struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

func (s *Server) sessionAction(w http.ResponseWriter, r *http.Request) error {
	var in sessionActionBody
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	actor := binarystore.AuthResultFromContext(r.Context()).UserID()

	switch in.Action {
	case "revoke":
		if in.SessionID == "" {
			return NewError(http.StatusBadRequest, "Missing sessionId", nil)
		}
		if err := s.engine.RevokeSession(r.Context(), actor, in.SessionID); err != nil {
			return err
		}
	case "revokeAllForUser":
		if in.UserID == "" {
			return NewError(http.StatusBadRequest, "Missing userId", nil)
		}
		if err := s.engine.RevokeAllForUser(r.Context(), actor, in.UserID); err != nil {
			return err
		}
	default:
		return NewError(http.StatusBadRequest, "Unknown action", nil)
	}

	writeJSON(w, http.StatusOK, ok)
	return nil
}
