package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vikrantjain/mcp-high-availability/internal/logger"
	"github.com/vikrantjain/mcp-high-availability/internal/session"
	"github.com/vikrantjain/mcp-high-availability/internal/store"
)

// ErrUnknownTool reports a call to a tool name the registry does not serve.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Result is the structured payload a tool returns to the caller.
type Result map[string]any

// Handler executes one named tool under the caller's session.
type Handler func(ctx context.Context, s *session.Session, args map[string]any) (Result, error)

// Registry dispatches named tool calls to their handlers. Every handler
// runs against a fresh Session bound to the caller's session id.
type Registry struct {
	store    store.Store
	instance string
	ttl      time.Duration
	start    time.Time

	// interval between polls of a watched counter
	watchPoll time.Duration

	handlers map[string]Handler
}

func NewRegistry(st store.Store, instance string, ttl time.Duration) *Registry {
	r := &Registry{
		store:     st,
		instance:  instance,
		ttl:       ttl,
		start:     time.Now(),
		watchPoll: 500 * time.Millisecond,
	}
	r.handlers = map[string]Handler{
		"increment_counter": r.incrementCounter,
		"get_counter":       r.getCounter,
		"add_note":          r.addNote,
		"list_notes":        r.listNotes,
		"analyze_data":      r.analyzeData,
		"get_server_info":   r.serverInfo,
		"get_status":        r.status,
		"resume_session":    r.resumeSession,
		"watch_counter":     r.watchCounter,
	}
	return r
}

func (r *Registry) Call(ctx context.Context, sid, name string, args map[string]any) (Result, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return h(ctx, session.New(r.store, sid, r.ttl), args)
}

func (r *Registry) incrementCounter(ctx context.Context, s *session.Session, _ map[string]any) (Result, error) {
	var counter int
	if _, err := s.Get(ctx, "counter", &counter); err != nil {
		return nil, err
	}
	counter++
	if err := s.Set(ctx, "counter", counter); err != nil {
		return nil, err
	}
	return Result{"counter": counter, "instance": r.instance}, nil
}

func (r *Registry) getCounter(ctx context.Context, s *session.Session, _ map[string]any) (Result, error) {
	var counter int
	if _, err := s.Get(ctx, "counter", &counter); err != nil {
		return nil, err
	}
	return Result{"counter": counter, "instance": r.instance}, nil
}

func (r *Registry) addNote(ctx context.Context, s *session.Session, args map[string]any) (Result, error) {
	note, _ := args["note"].(string)
	if note == "" {
		return nil, fmt.Errorf("tools: add_note requires a non-empty note")
	}
	if err := s.Append(ctx, "notes", note); err != nil {
		return nil, err
	}
	notes, err := s.List(ctx, "notes")
	if err != nil {
		return nil, err
	}
	return Result{"notes_count": len(notes), "instance": r.instance}, nil
}

func (r *Registry) listNotes(ctx context.Context, s *session.Session, _ map[string]any) (Result, error) {
	notes, err := s.List(ctx, "notes")
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []string{}
	}
	return Result{"notes": notes, "instance": r.instance}, nil
}

// analyzeData runs the scoring pipeline over num_items items and stores
// the aggregate under analysis_result for later recovery.
func (r *Registry) analyzeData(ctx context.Context, s *session.Session, args map[string]any) (Result, error) {
	numItems := intArg(args, "num_items")
	if numItems <= 0 {
		return nil, fmt.Errorf("tools: analyze_data requires num_items > 0")
	}

	logger.Info("analysis started", map[string]any{
		"instance": r.instance,
		"items":    numItems,
	})

	total := 0.0
	for i := 1; i <= numItems; i++ {
		total += float64(i) * 1.5
	}

	result := map[string]any{
		"total_score":     total,
		"items_processed": numItems,
	}
	if err := s.Set(ctx, "analysis_result", result); err != nil {
		return nil, err
	}

	logger.Info("analysis complete", map[string]any{
		"instance":    r.instance,
		"items":       numItems,
		"total_score": total,
	})

	return Result{
		"items_processed": numItems,
		"total_score":     total,
		"instance":        r.instance,
	}, nil
}

func (r *Registry) serverInfo(ctx context.Context, _ *session.Session, _ map[string]any) (Result, error) {
	ids, err := r.store.SessionIDs(ctx)
	if err != nil {
		return nil, err
	}
	return Result{"instance": r.instance, "sessions": len(ids)}, nil
}

func (r *Registry) status(ctx context.Context, _ *session.Session, _ map[string]any) (Result, error) {
	ids, err := r.store.SessionIDs(ctx)
	if err != nil {
		return nil, err
	}
	return Result{
		"instance":        r.instance,
		"uptime_seconds":  time.Since(r.start).Round(100 * time.Millisecond).Seconds(),
		"active_sessions": len(ids),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// resumeSession copies all live state from a previous session into the
// caller's current one. Resuming the caller's own session copies nothing,
// and resuming an unknown or expired session reports zero keys; neither
// is an error, so clients may call this speculatively after a reconnect.
func (r *Registry) resumeSession(ctx context.Context, s *session.Session, args map[string]any) (Result, error) {
	oldSID, _ := args["old_session_id"].(string)
	// ':' is the store's namespace separator; issued ids never contain it
	if oldSID == "" || strings.Contains(oldSID, ":") {
		return nil, fmt.Errorf("tools: resume_session requires a valid old_session_id")
	}

	if oldSID == s.ID() {
		return Result{"status": "same_session", "instance": r.instance}, nil
	}

	copied, err := s.CopyFrom(ctx, oldSID)
	if err != nil {
		return nil, err
	}

	logger.Info("session resumed", map[string]any{
		"instance":    r.instance,
		"old_session": oldSID,
		"new_session": s.ID(),
		"keys_copied": copied,
	})

	return Result{"status": "resumed", "keys_copied": copied, "instance": r.instance}, nil
}

// watchCounter polls the session counter for a bounded window and returns
// every change it observed. It stands in for a resource subscription: the
// caller learns about writes other parties make to the same session.
func (r *Registry) watchCounter(ctx context.Context, s *session.Session, args map[string]any) (Result, error) {
	secs := intArg(args, "duration_seconds")
	if secs <= 0 {
		return nil, fmt.Errorf("tools: watch_counter requires duration_seconds > 0")
	}
	window := watchWindow(secs)

	var last int
	if _, err := s.Get(ctx, "counter", &last); err != nil {
		return nil, err
	}

	changes := []Result{}
	start := time.Now()
	for time.Since(start) < window {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.watchPoll):
		}

		var current int
		if _, err := s.Get(ctx, "counter", &current); err != nil {
			return nil, err
		}
		if current != last {
			changes = append(changes, Result{
				"from": last,
				"to":   current,
				"at":   time.Since(start).Round(10 * time.Millisecond).Seconds(),
			})
			last = current
		}
	}

	return Result{
		"changes":       changes,
		"total_changes": len(changes),
		"instance":      r.instance,
	}, nil
}

const maxWatchSeconds = 30

// watchWindow clamps a watch request to the 30s ceiling.
func watchWindow(secs int) time.Duration {
	if secs > maxWatchSeconds {
		secs = maxWatchSeconds
	}
	return time.Duration(secs) * time.Second
}

// intArg reads an integer argument that arrives either as a Go int or as
// a JSON-decoded float64.
func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
