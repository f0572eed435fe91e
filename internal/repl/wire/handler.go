package wire

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/fql"
	"github.com/matthewbaird/filterspec/internal/planner"
	"github.com/matthewbaird/filterspec/internal/repl/autocomplete"
	"github.com/matthewbaird/filterspec/internal/repl/meta"
	"github.com/matthewbaird/filterspec/internal/repl/session"
)

// rowBatchSize controls how many rows are sent per "rows" message.
const rowBatchSize = 50

// Executor runs query plans.
type Executor interface {
	Execute(ctx context.Context, plan *planner.QueryPlan) (*executor.Result, error)
}

// Handler manages WebSocket connections for the REPL.
type Handler struct {
	sessions     *session.Manager
	planner      *planner.Planner
	executor     Executor
	autocomplete *autocomplete.Engine
	meta         *meta.Handler
	log          zerolog.Logger
}

// NewHandler creates a WebSocket handler with all dependencies.
func NewHandler(
	sessions *session.Manager,
	pl *planner.Planner,
	exec Executor,
	ac *autocomplete.Engine,
	metaHandler *meta.Handler,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		sessions:     sessions,
		planner:      pl,
		executor:     exec,
		autocomplete: ac,
		meta:         metaHandler,
		log:          log,
	}
}

// conn is one client connection and its in-flight executions.
type conn struct {
	ws   *websocket.Conn
	sess *session.Session
	log  zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*request
	wg       sync.WaitGroup
}

// request is one in-flight execution. Entries are compared by pointer so a
// finished run never removes a newer run registered under the same ID.
type request struct {
	cancel context.CancelFunc
}

// ServeHTTP upgrades to WebSocket and runs the message loop. A "session"
// query parameter naming a live session resumes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket accept")
		return
	}
	defer ws.CloseNow()

	resumed := false
	var sess *session.Session
	if id := r.URL.Query().Get("session"); id != "" {
		sess = h.sessions.Get(id)
		resumed = sess != nil
	}
	if sess == nil {
		sess = h.sessions.Create()
	}

	c := &conn{
		ws:       ws,
		sess:     sess,
		log:      h.log.With().Str("session", sess.ID).Logger(),
		inflight: make(map[string]*request),
	}
	c.log.Info().Bool("resumed", resumed).Msg("repl connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		c.wg.Wait()
	}()

	c.send(ctx, ServerMessage{
		Type: TypeSession,
		Data: SessionData{SessionID: sess.ID, Resumed: resumed},
	})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.Info().Int("status", int(status)).Msg("repl disconnected")
			} else if ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("repl read")
			}
			return
		}
		sess.Touch()

		switch msg.Type {
		case TypeExecute:
			h.startExecute(ctx, c, msg)
		case TypeAutocomplete:
			h.handleAutocomplete(ctx, c, msg)
		case TypePing:
			c.send(ctx, ServerMessage{Type: TypePong, RequestID: msg.ID})
		case TypeCancel:
			h.handleCancel(c, msg)
		default:
			c.sendError(ctx, msg.ID, ErrorData{Code: "unknown_type", Message: "unknown message type: " + msg.Type})
		}
	}
}

// startExecute runs an execute request in the background so that a later
// "cancel" message can stop it. Replies are written on the connection
// context; only the execution itself runs on the request context.
func (h *Handler) startExecute(ctx context.Context, c *conn, msg ClientMessage) {
	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{cancel: cancel}
	c.mu.Lock()
	if prev, ok := c.inflight[msg.ID]; ok {
		prev.cancel()
	}
	c.inflight[msg.ID] = req
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			if c.inflight[msg.ID] == req {
				delete(c.inflight, msg.ID)
			}
			c.mu.Unlock()
			cancel()
		}()
		h.handleExecute(ctx, reqCtx, c, msg)
	}()
}

func (h *Handler) handleCancel(c *conn, msg ClientMessage) {
	var data CancelData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
	}
	id := data.RequestID
	if id == "" {
		id = msg.ID
	}
	c.mu.Lock()
	req, ok := c.inflight[id]
	c.mu.Unlock()
	if ok {
		req.cancel()
	}
}

func (h *Handler) handleExecute(ctx, reqCtx context.Context, c *conn, msg ClientMessage) {
	start := time.Now()

	var data ExecuteData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(ctx, msg.ID, ErrorData{Code: "invalid_data", Message: "invalid execute data"})
		return
	}
	if strings.TrimSpace(data.FQL) == "" {
		c.sendError(ctx, msg.ID, ErrorData{Code: "empty_query", Message: "empty FQL query"})
		return
	}

	c.sess.AddHistory(data.FQL)

	stmts, err := fql.Parse(data.FQL)
	if err != nil {
		var list fql.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			c.sendError(ctx, msg.ID, syntaxError(list[0]))
		} else {
			c.sendError(ctx, msg.ID, errorData("syntax_error", err))
		}
		return
	}
	if len(stmts) == 0 {
		c.sendError(ctx, msg.ID, ErrorData{Code: "empty_query", Message: "no statements found"})
		return
	}

	total := 0
	for _, stmt := range stmts {
		if reqCtx.Err() != nil {
			c.sendError(ctx, msg.ID, ErrorData{Code: "canceled", Message: "query canceled"})
			return
		}
		plan, err := h.planner.Plan(stmt)
		if err != nil {
			c.sendError(ctx, msg.ID, errorData("plan_error", err))
			return
		}

		if plan.Type == planner.PlanMeta {
			result, err := h.meta.Execute(c.sess, plan.MetaCommand, plan.MetaArgs, plan.MetaRest)
			if err != nil {
				c.sendError(ctx, msg.ID, errorData("meta_error", err))
				return
			}
			c.send(ctx, ServerMessage{
				Type:      TypeOutput,
				RequestID: msg.ID,
				Data:      OutputData{Output: result.Output, Clear: result.Clear},
			})
			continue
		}

		result, err := h.executor.Execute(reqCtx, plan)
		if err != nil {
			if errors.Is(err, context.Canceled) || reqCtx.Err() != nil {
				c.sendError(ctx, msg.ID, ErrorData{Code: "canceled", Message: "query canceled"})
				return
			}
			c.log.Debug().Err(err).Str("fql", data.FQL).Msg("execute")
			c.sendError(ctx, msg.ID, errorData("exec_error", err))
			return
		}

		if result.Meta != nil {
			total += result.Meta.Total
			c.send(ctx, ServerMessage{
				Type:      TypeMeta,
				RequestID: msg.ID,
				Data:      MetaData{Entity: result.Meta.Entity, Total: result.Meta.Total},
			})
		}

		for i := 0; i < len(result.Rows); i += rowBatchSize {
			end := min(i+rowBatchSize, len(result.Rows))
			c.send(ctx, ServerMessage{
				Type:      TypeRows,
				RequestID: msg.ID,
				Data:      RowsData{Rows: result.Rows[i:end]},
			})
		}

		if result.Count != nil {
			c.send(ctx, ServerMessage{
				Type:      TypeCount,
				RequestID: msg.ID,
				Data:      CountData{Count: *result.Count},
			})
		}
	}

	c.send(ctx, ServerMessage{
		Type:      TypeDone,
		RequestID: msg.ID,
		Data:      DoneData{Total: total, Elapsed: time.Since(start).String()},
	})
}

func (h *Handler) handleAutocomplete(ctx context.Context, c *conn, msg ClientMessage) {
	var data AutocompleteData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(ctx, msg.ID, ErrorData{Code: "invalid_data", Message: "invalid autocomplete data"})
		return
	}

	items := h.autocomplete.Complete(data.FQL, data.Cursor)
	if items == nil {
		items = []autocomplete.CompletionItem{}
	}
	c.send(ctx, ServerMessage{
		Type:      TypeCompletions,
		RequestID: msg.ID,
		Data:      CompletionsData{Items: items},
	})
}

func (c *conn) send(ctx context.Context, msg ServerMessage) {
	if err := wsjson.Write(ctx, c.ws, msg); err != nil && ctx.Err() == nil {
		c.log.Warn().Err(err).Str("type", msg.Type).Msg("repl write")
	}
}

func (c *conn) sendError(ctx context.Context, requestID string, data ErrorData) {
	c.send(ctx, ServerMessage{Type: TypeError, RequestID: requestID, Data: data})
}

func syntaxError(pe *fql.ParseError) ErrorData {
	return ErrorData{
		Code:    "syntax_error",
		Message: pe.Message,
		Hint:    pe.Suggestion,
		Line:    pe.Line,
		Col:     pe.Col,
	}
}

func errorData(code string, err error) ErrorData {
	return ErrorData{
		Code:    code,
		Message: err.Error(),
		Hint:    errors.FlattenHints(err),
	}
}
