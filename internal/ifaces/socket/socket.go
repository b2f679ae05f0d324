// Package socket serves the daemon socket protocol (spec.md §6.5): a
// local Unix stream socket on which the CLI sends line-delimited typed
// requests `{type, payload}` and receives typed responses. The message
// vocabulary is a subset of §6.4, routed through gorilla/mux the same
// way the teacher routes its HTTP surface, against a net.Listener
// instead of an *http.Server.
package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/noesis-run/noesis/internal/ifaces"
	"github.com/noesis-run/noesis/internal/metaops"
)

// Request is one line of the protocol: a command type and opaque payload.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Response mirrors the request with either a result or an error string.
type Response struct {
	Type   string `json:"type"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler processes one decoded request payload and returns a result.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Server owns the Unix socket listener, a mux.Router on which each
// command name is registered as a named route, and the handlers map that
// dispatches each request by its command name — there is no HTTP framing
// here.
type Server struct {
	path     string
	listener net.Listener
	router   *mux.Router
	handlers map[string]Handler
	log      zerolog.Logger
}

func New(socketPath string, rt *ifaces.Runtime, log zerolog.Logger) *Server {
	s := &Server{
		path:     socketPath,
		router:   mux.NewRouter(),
		handlers: make(map[string]Handler),
		log:      log.With().Str("component", "socket").Logger(),
	}
	s.registerCommands(rt)
	return s
}

// registerCommands binds the §6.4 command surface; each mux route exists
// only so the command name participates in the same router abstraction
// the gateway uses, keeping the two transports' command tables in sync.
func (s *Server) registerCommands(rt *ifaces.Runtime) {
	register := func(name string, h Handler) {
		s.router.Name(name)
		s.handlers[name] = h
	}

	register("verify", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return rt.VerifyLogged(ctx)
	})
	register("verify_readonly", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return rt.Verify()
	})
	register("status", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return rt.Status(), nil
	})
	register("vitals", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return rt.HostVitals(), nil
	})
	register("session_start", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var body struct {
			Partner string `json:"partner"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, err
		}
		return rt.SessionStart(body.Partner)
	})
	register("session_end", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return rt.SessionEnd()
	})
	register("recharge", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var body struct {
			Amount float64 `json:"amount"`
		}
		_ = json.Unmarshal(payload, &body)
		return rt.Recharge(body.Amount)
	})
	register("op_exec", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var body struct {
			ID     string         `json:"id"`
			Params map[string]any `json:"params"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, err
		}
		return rt.OpExec(body.ID, body.Params)
	})
	register("agent_force_cycle", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return rt.AgentForceCycle()
	})
	register("agent_wake", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, rt.AgentWake()
	})
	register("agent_sleep", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, rt.AgentSleep()
	})
	register("snapshot_create", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.Unmarshal(payload, &body)
		return rt.SnapshotCreate(body.Description)
	})
	register("snapshot_list", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return rt.SnapshotList()
	})
	register("snapshot_restore", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, err
		}
		return rt.SnapshotRestore(body.ID)
	})
	register("meta_define", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req metaops.DefineRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return rt.MetaDefine(req)
	})
	register("meta_compose", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req metaops.ComposeRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return rt.MetaCompose(req)
	})
	register("meta_specialize", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req metaops.SpecializeRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return rt.MetaSpecialize(req)
	})
}

// Listen opens the Unix socket, removing a stale socket file left by a
// previous unclean shutdown before binding.
func (s *Server) Listen() error {
	if _, err := os.Stat(s.path); err == nil {
		os.Remove(s.path)
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("socket: listen %s: %w", s.path, err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	os.Remove(s.path)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(Response{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		handler, ok := s.handlers[req.Type]
		if !ok {
			encoder.Encode(Response{Type: req.Type, Error: "unknown command"})
			continue
		}

		result, err := handler(ctx, req.Payload)
		resp := Response{Type: req.Type}
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
		if err := encoder.Encode(resp); err != nil {
			s.log.Warn().Err(err).Msg("failed to encode response")
			return
		}
	}
}
