package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/flowsketch/pkg/cache"
	"github.com/matzehuels/flowsketch/pkg/command"
	"github.com/matzehuels/flowsketch/pkg/errors"
	"github.com/matzehuels/flowsketch/pkg/httputil"
	fsio "github.com/matzehuels/flowsketch/pkg/io"
	"github.com/matzehuels/flowsketch/pkg/layout"
	"github.com/matzehuels/flowsketch/pkg/render/nodelink"
	"github.com/matzehuels/flowsketch/pkg/session"
)

type sessionKey struct{}

// withSession resolves {id} and stores the session in the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey{}).(*session.Session)
}

// SessionInfo describes a session in list and create responses.
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Nodes        int       `json:"nodes"`
	Edges        int       `json:"edges"`
	Version      uint64    `json:"version"`
	LayoutActive bool      `json:"layout_active"`
}

func info(sess *session.Session) SessionInfo {
	g := sess.Snapshot()
	return SessionInfo{
		ID:           sess.ID,
		CreatedAt:    sess.CreatedAt,
		Nodes:        len(g.Nodes),
		Edges:        len(g.Edges),
		Version:      sess.Store.Version(),
		LayoutActive: sess.Layout.Active(),
	}
}

// ReportBody is the response to a command batch.
type ReportBody struct {
	Lines       []command.LineResult `json:"lines"`
	Executed    int                  `json:"executed"`
	Ignored     int                  `json:"ignored"`
	Diagnostics int                  `json:"diagnostics"`
	Version     uint64               `json:"version"`
}

func reportBody(rep command.Report, version uint64) ReportBody {
	lines := rep.Lines
	if lines == nil {
		lines = []command.LineResult{}
	}
	return ReportBody{
		Lines:       lines,
		Executed:    rep.Executed(),
		Ignored:     rep.Ignored(),
		Diagnostics: len(rep.Diagnostics()),
		Version:     version,
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.logger.Error("create session", "err", err)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	httputil.WriteJSON(w, http.StatusCreated, info(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	all := s.sessions.List()
	out := make([]SessionInfo, len(all))
	for i, sess := range all {
		out[i] = info(sess)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(sessionFrom(r).ID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) executeCommands(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	rep, err := fsio.ReadScript(r.Context(), r.Body, sess)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reportBody(rep, sess.Store.Version()))
}

func (s *Server) paste(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	rep, err := sess.Paste(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reportBody(rep, sess.Store.Version()))
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if httputil.NotModified(w, r, sess.Store.Version()) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := fsio.WriteJSON(sess.Snapshot(), w); err != nil {
		s.logger.Warn("write graph", "session", sess.ID, "err", err)
	}
}

// importGraph replays a JSON snapshot as commands on top of the current
// diagram. Conflicting ids are reported per line.
func (s *Server) importGraph(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	body := http.MaxBytesReader(w, r.Body, errors.MaxScriptBytes)
	rep, err := fsio.LoadJSON(r.Context(), body, sess)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeInvalidInput, err, "decode graph")
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reportBody(rep, sess.Store.Version()))
}

func (s *Server) getScript(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if httputil.NotModified(w, r, sess.Store.Version()) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := fsio.WriteScript(sess.Snapshot(), w); err != nil {
		s.logger.Warn("write script", "session", sess.ID, "err", err)
	}
}

func (s *Server) getSVG(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if httputil.NotModified(w, r, sess.Store.Version()) {
		return
	}
	dot := nodelink.ToDOT(sess.Snapshot(), nodelink.Options{Measure: sess.Measure()})
	svg, err := s.renders.Do(r.Context(), cache.Key("svg", dot), func(ctx context.Context) ([]byte, error) {
		return nodelink.RenderSVG(ctx, dot)
	})
	if err != nil {
		s.logger.Error("render svg", "session", sess.ID, "err", err)
		httputil.WriteError(w, errors.Wrap(errors.ErrCodeInternal, err, "render failed"))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = bytes.NewReader(svg).WriteTo(w)
}

// LayoutBody is the response to a layout request.
type LayoutBody struct {
	Engine  string `json:"engine"`
	Mode    string `json:"mode"`
	Active  bool   `json:"active"`
	Version uint64 `json:"version"`
}

func (s *Server) requestLayout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	q := r.URL.Query()

	mode := layout.Full
	if m := q.Get("mode"); m != "" {
		parsed, err := layout.ParseMode(m)
		if err != nil {
			httputil.WriteError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid mode %q", m))
			return
		}
		mode = parsed
	}
	engine := q.Get("engine")
	if engine == "" {
		engine = sess.Layout.DefaultEngine()
	}

	if err := sess.RequestLayout(mode, engine); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, LayoutBody{
		Engine:  engine,
		Mode:    mode.String(),
		Active:  sess.Layout.Active(),
		Version: sess.Store.Version(),
	})
}
