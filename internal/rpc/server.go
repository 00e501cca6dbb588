package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"codegraph/internal/conductor"
	"codegraph/internal/devagent"
	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/query"
	"codegraph/internal/semantic"
	"codegraph/internal/store"
)

// Server drives the line-delimited JSON-RPC 2.0 transport described in spec
// §6: one request object per line on in, one response object per line on
// out. It owns no business logic of its own — every tool call is turned
// into a types.Task and handed to the Conductor, mirroring the teacher's
// StdioTransport read loop but in the reverse direction (server, not client).
type Server struct {
	Conductor *conductor.Conductor
	Dev       *devagent.DevAgent
	Query     *query.Engine
	Semantic  *semantic.Engine
	Store     *store.Manager

	log *logging.Logger

	writeMu sync.Mutex
	out     io.Writer
}

// NewServer builds a Server bound to the engine components main.go wires
// together.
func NewServer(c *conductor.Conductor, dev *devagent.DevAgent, q *query.Engine, sem *semantic.Engine, s *store.Manager) *Server {
	return &Server{
		Conductor: c, Dev: dev, Query: q, Semantic: sem, Store: s,
		log: logging.Get(logging.RPC),
	}
}

// Serve reads newline-delimited JSON-RPC requests from in until EOF or ctx
// is cancelled, dispatching each to its tool handler and writing exactly
// one response line per request to out. Each request is handled in its own
// goroutine so a slow tool call never blocks the read loop (spec §6:
// "notifications and events are delivered only when the caller requests a
// streaming tool", i.e. request/response pairing is not assumed to be
// strictly sequential).
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var wg sync.WaitGroup
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleLine(ctx, line)
		}()
	}
	wg.Wait()
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.write(errorResponse(nil, codeParseError, "invalid JSON: "+err.Error(), nil))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.write(errorResponse(req.ID, codeInvalidRequest, "not a JSON-RPC 2.0 request", nil))
		return
	}

	handler, ok := toolTable[req.Method]
	if !ok {
		s.write(errorResponse(req.ID, codeMethodNotFound, "unknown tool: "+req.Method, nil))
		return
	}

	result, err := handler(ctx, s, req.Params)
	if err != nil {
		s.write(errorFor(req.ID, err))
		return
	}
	s.write(resultResponse(req.ID, result))
}

// errorFor classifies err into the JSON-RPC error shape, surfacing
// structured errs.Error context (kind, retry hint) when available.
func errorFor(id json.RawMessage, err error) response {
	e, ok := err.(*errs.Error)
	if !ok {
		return errorResponse(id, codeInternalError, err.Error(), nil)
	}
	code := codeInternalError
	switch e.Kind {
	case errs.KindInvalidInput:
		code = codeInvalidParams
	case errs.KindBackpressure:
		code = codeBackpressure
	case errs.KindInvariantViolation:
		code = codeInvariant
	}
	resp := errorResponse(id, code, e.Error(), e.RetryAfterMs)
	resp.Error.Data = e.Context
	return resp
}

func (s *Server) write(resp response) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.out.Write(b)
	s.out.Write([]byte("\n"))
}
