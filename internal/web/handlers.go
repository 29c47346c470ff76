package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"homechat/internal/application"
	"homechat/internal/domain"
	"homechat/internal/scheduler"
)

const (
	audioFailedMessage = "Ses anlaşılamadı."

	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

type turnView struct {
	User bool
	Text string
	HTML template.HTML
}

type timerView struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	Name       string    `json:"name"`
	Delay      float64   `json:"delay_seconds"`
	Due        time.Time `json:"due"`
	Recurrence string    `json:"recurrence,omitempty"`
	Runs       int       `json:"runs"`
}

type welcomePage struct {
	Error string
}

type chatPage struct {
	UserName   string
	Weather    domain.Reading
	Turns      []turnView
	Timers     []timerView
	Flash      string
	Simulation bool
}

type chatRequest struct {
	Text string `json:"text"`
}

type chatResponse struct {
	Content    string      `json:"content"`
	HTML       string      `json:"html"`
	Response   string      `json:"response"`
	Logs       []string    `json:"logs"`
	Timers     []timerView `json:"timers"`
	Structured bool        `json:"structured"`
	Transcript string      `json:"transcript,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newTimerView(e scheduler.Entry) timerView {
	return timerView{
		ID:         e.ID,
		EntityID:   e.EntityID,
		Name:       domain.DisplayName(e.EntityID),
		Delay:      e.Delay.Seconds(),
		Due:        e.Due,
		Recurrence: string(e.Recurrence),
		Runs:       e.Runs,
	}
}

func timerViews(entries []scheduler.Entry) []timerView {
	views := make([]timerView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newTimerView(e))
	}
	return views
}

// session returns the caller's session, or nil when the cookie is missing
// or stale.
func (s *Server) session(r *http.Request) *application.Session {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	sess, err := s.deps.Sessions.Get(c.Value)
	if err != nil {
		return nil
	}
	return sess
}

// chatSession is session restricted to users past the naming step.
func (s *Server) chatSession(r *http.Request) *application.Session {
	sess := s.session(r)
	if sess == nil || sess.Stage() != application.StageChat {
		return nil
	}
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.chatSession(r)
	if sess == nil {
		s.render(w, http.StatusOK, "welcome.html", welcomePage{})
		return
	}

	turns := sess.Turns()
	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		if t.Role == domain.RoleUser {
			views = append(views, turnView{User: true, Text: t.Content})
			continue
		}
		views = append(views, turnView{HTML: s.markdown(t.Content)})
	}

	var timers []timerView
	if s.deps.Timers != nil {
		timers = timerViews(s.deps.Timers.PendingFor(sess.ID))
	}

	s.render(w, http.StatusOK, "chat.html", chatPage{
		UserName:   sess.UserName(),
		Weather:    s.deps.Weather.Current(r.Context()),
		Turns:      views,
		Timers:     timers,
		Flash:      s.takeFlash(sess.ID),
		Simulation: s.deps.Mode == "simulation",
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTextBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	name := r.PostForm.Get("name")
	if strings.TrimSpace(name) == "" {
		s.render(w, http.StatusBadRequest, "welcome.html", welcomePage{Error: "Lütfen adınızı girin."})
		return
	}

	if old := s.session(r); old != nil {
		s.deps.Sessions.Delete(old.ID)
	}

	sess := s.deps.Sessions.Create()
	if err := sess.Start(name); err != nil {
		s.deps.Sessions.Delete(sess.ID)
		s.render(w, http.StatusBadRequest, "welcome.html", welcomePage{Error: "Lütfen adınızı girin."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Info("session started", "session", sess.ID, "user", sess.UserName())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(r); sess != nil {
		s.deps.Sessions.Delete(sess.ID)
		s.takeFlash(sess.ID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleChatForm(w http.ResponseWriter, r *http.Request) {
	sess := s.chatSession(r)
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTextBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	_, err := s.deps.Router.Handle(r.Context(), sess, r.PostForm.Get("text"))
	if err != nil && !errors.Is(err, application.ErrEmptyCommand) {
		s.logger.Error("handling command", "session", sess.ID, "error", err)
		s.setFlash(sess.ID, apiErrorMessage(err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAPIChat(w http.ResponseWriter, r *http.Request) {
	sess := s.chatSession(r)
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no active session"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTextBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	s.route(w, r, sess, req.Text, "")
}

func (s *Server) handleAPIAudio(w http.ResponseWriter, r *http.Request) {
	sess := s.chatSession(r)
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no active session"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes))
	if err != nil {
		s.logger.Error("reading audio body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}
	defer r.Body.Close()

	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty audio"})
		return
	}

	text, err := s.deps.STT.Transcribe(r.Context(), data)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.logger.Warn("transcription failed", "session", sess.ID, "error", err)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: audioFailedMessage})
		return
	}

	s.logger.Info("received audio command", "session", sess.ID, "bytes", len(data), "text", text)
	s.route(w, r, sess, text, text)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, sess *application.Session, text, transcript string) {
	out, err := s.deps.Router.Handle(r.Context(), sess, text)
	switch {
	case errors.Is(err, application.ErrEmptyCommand):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty command"})
		return
	case err != nil:
		s.logger.Error("handling command", "session", sess.ID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: apiErrorMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Content:    out.Content,
		HTML:       string(s.markdown(out.Content)),
		Response:   out.Response,
		Logs:       out.Logs,
		Timers:     timerViews(out.Timers),
		Structured: out.Structured,
		Transcript: transcript,
	})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Weather.Current(r.Context()))
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	sess := s.chatSession(r)
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no active session"})
		return
	}

	var entries []scheduler.Entry
	if s.deps.Timers != nil {
		entries = s.deps.Timers.PendingFor(sess.ID)
	}
	writeJSON(w, http.StatusOK, timerViews(entries))
}

// handleJournal lists the caller's own journal entries.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	sess := s.chatSession(r)
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no active session"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := s.deps.Journal.Recent(r.Context(), sess.ID, limit)
	if err != nil {
		s.logger.Error("reading journal", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "journal unavailable"})
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sess := s.chatSession(r)
	if sess == nil {
		http.Error(w, "no active session", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	firings, unsubscribe := s.deps.Hub.Subscribe(sess.ID)
	defer unsubscribe()

	s.logger.Debug("websocket connected", "session", sess.ID)

	// The client sends nothing; reading detects when it goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case f, ok := <-firings:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				s.logger.Debug("websocket write failed", "session", sess.ID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	running := s.Running()

	pending := 0
	if s.deps.Timers != nil {
		pending = s.deps.Timers.Stats().Pending
	}

	status := "ok"
	statusCode := http.StatusOK

	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":         status,
		"running":        running,
		"pending_timers": pending,
		"sessions":       s.deps.Sessions.Len(),
	})
}

func apiErrorMessage(err error) string {
	return fmt.Sprintf("API Hatası: %v", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
