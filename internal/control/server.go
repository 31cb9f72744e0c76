// Package control serves a small local HTTP API for listing, invoking and
// cancelling buttons while the panel or "serve" is running.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/quickbuttons/internal/buttons"
	"github.com/user/quickbuttons/internal/executor"
	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/timer"
	"github.com/user/quickbuttons/internal/types"
)

// maxWait bounds how long ?wait=1 holds the request open.
const maxWait = 10 * time.Minute

// Buttons is the read side of the button registry.
type Buttons interface {
	List() []types.Button
	Problem(id types.ButtonID) error
}

// Executor runs and cancels buttons.
type Executor interface {
	Invoke(id types.ButtonID, opts ...executor.InvokeOption) (*executor.Handle, error)
	Cancel(id types.ButtonID) error
	Running(id types.ButtonID) (executor.Record, bool)
}

// Timers reports timer states.
type Timers interface {
	States() []timer.State
}

// Server is the control API's http.Handler.
type Server struct {
	buttons Buttons
	exec    Executor
	timers  Timers
	mux     *http.ServeMux
}

// NewServer wires the routes.
func NewServer(b Buttons, exec Executor, timers Timers) *Server {
	s := &Server{buttons: b, exec: exec, timers: timers, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/buttons", s.handleButtons)
	s.mux.HandleFunc("POST /api/buttons/{id}/invoke", s.handleInvoke)
	s.mux.HandleFunc("POST /api/buttons/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("GET /api/timers", s.handleTimers)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("control API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("control API encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type buttonResponse struct {
	ID       types.ButtonID   `json:"id"`
	Type     types.ButtonType `json:"type"`
	Label    string           `json:"label"`
	Icon     string           `json:"icon,omitempty"`
	Order    int              `json:"order"`
	Schedule string           `json:"schedule,omitempty"`
	Running  bool             `json:"running"`
	Problem  string           `json:"problem,omitempty"`
}

func (s *Server) handleButtons(w http.ResponseWriter, r *http.Request) {
	list := s.buttons.List()
	out := make([]buttonResponse, 0, len(list))
	for _, b := range list {
		resp := buttonResponse{
			ID:       b.ID,
			Type:     b.Type,
			Label:    b.DisplayName(),
			Icon:     b.Icon,
			Order:    b.Order,
			Schedule: b.Schedule,
		}
		_, resp.Running = s.exec.Running(b.ID)
		if err := s.buttons.Problem(b.ID); err != nil {
			resp.Problem = err.Error()
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

type invokeRequest struct {
	Input string            `json:"input"`
	Vars  map[string]string `json:"vars"`
}

type recordResponse struct {
	InvocationID types.InvocationID `json:"invocation_id"`
	ButtonID     types.ButtonID     `json:"button_id"`
	Status       executor.Status    `json:"status,omitempty"`
	Kind         runtime.ErrorKind  `json:"kind,omitempty"`
	Message      string             `json:"message,omitempty"`
	Output       string             `json:"output,omitempty"`
	ExitCode     *int               `json:"exit_code,omitempty"`
	DurationMS   int64              `json:"duration_ms,omitempty"`
}

func newRecordResponse(rec executor.Record) recordResponse {
	resp := recordResponse{
		InvocationID: rec.ID,
		ButtonID:     rec.ButtonID,
		Status:       rec.Status,
		Kind:         rec.Kind,
		Message:      rec.Message,
		Output:       rec.Result.Output,
		DurationMS:   rec.Duration().Milliseconds(),
	}
	if rec.Type == types.TypeShell || rec.Type == types.TypePython {
		code := rec.Result.ExitCode
		resp.ExitCode = &code
	}
	return resp
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseButtonID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var body invokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid JSON"))
			return
		}
	}

	h, err := s.exec.Invoke(id, executor.WithInput(body.Input), executor.WithVars(body.Vars))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if r.URL.Query().Get("wait") == "" {
		writeJSON(w, http.StatusAccepted, recordResponse{InvocationID: h.ID, ButtonID: id, Status: executor.StatusRunning})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), maxWait)
	defer cancel()
	rec, err := h.Wait(ctx)
	if err != nil {
		// The client went away; the invocation keeps running.
		writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordResponse(rec))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseButtonID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.exec.Cancel(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type timerResponse struct {
	ButtonID  types.ButtonID `json:"button_id"`
	Phase     timer.Phase    `json:"phase"`
	Remaining string         `json:"remaining"`
	Seconds   int64          `json:"remaining_seconds"`
	Pomodoro  bool           `json:"pomodoro"`
	Sub       timer.SubPhase `json:"sub_phase,omitempty"`
	Cycle     int            `json:"cycle,omitempty"`
	Cycles    int            `json:"cycles,omitempty"`
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	states := s.timers.States()
	out := make([]timerResponse, 0, len(states))
	for _, st := range states {
		out = append(out, timerResponse{
			ButtonID:  st.ButtonID,
			Phase:     st.Phase,
			Remaining: timer.FormatRemaining(st.Remaining),
			Seconds:   int64(st.Remaining.Round(time.Second) / time.Second),
			Pomodoro:  st.Pomodoro,
			Sub:       st.Sub,
			Cycle:     st.Cycle,
			Cycles:    st.Cycles,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// statusFor maps executor and registry errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *runtime.ValidationError
	switch {
	case errors.Is(err, buttons.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrBusy), errors.Is(err, executor.ErrNotRunning):
		return http.StatusConflict
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, runtime.ErrUnknownType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, executor.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
