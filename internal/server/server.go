// Package server exposes the structure service to a language-tooling host
// over JSON-RPC 2.0 (LSP base protocol framing). The host calls
// workspace/executeCommand with one of the extension commands; requests are
// cancellable via $/cancelRequest.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	chels "github.com/bdshadow/che-ls-jdt"
)

// Extension command identifiers dispatched through workspace/executeCommand.
const (
	CommandFileStructure   = "che.jdt.ls.extension.fileStructure"
	CommandUpdateWorkspace = "che.jdt.ls.extension.updateWorkspace"
)

// codeRequestCancelled is the LSP error code reported for a request
// cancelled by the client.
const codeRequestCancelled = -32800

// FileStructureParams is the argument of the fileStructure command.
type FileStructureParams struct {
	URI           string `json:"uri"`
	ShowInherited bool   `json:"showInherited"`
}

// UpdateWorkspaceParams is the argument of the updateWorkspace command.
type UpdateWorkspaceParams struct {
	AddedProjectsURI   []string `json:"addedProjectsUri"`
	RemovedProjectsURI []string `json:"removedProjectsUri"`
}

// Server handles one host connection.
type Server struct {
	engine *chels.Engine
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[jsonrpc2.ID]context.CancelFunc
	shutdown bool
}

// New builds a server around an engine. A nil logger falls back to
// slog.Default.
func New(engine *chels.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		logger:   logger,
		inflight: make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// Run serves JSON-RPC on rwc until the peer disconnects or ctx is
// cancelled. Requests are handled asynchronously so $/cancelRequest can
// interrupt an in-flight command.
func (s *Server) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(s.handle)))
	select {
	case <-conn.DisconnectNotify():
		return nil
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	}
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "initialize":
		return s.initialize(req)
	case "initialized":
		return nil, nil
	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	case "exit":
		conn.Close()
		return nil, nil
	case "$/cancelRequest":
		s.cancelRequest(req)
		return nil, nil
	case "workspace/executeCommand":
		return s.executeCommand(ctx, req)
	}
	if req.Notif {
		return nil, nil
	}
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("method not supported: %s", req.Method),
	}
}

type initializeResult struct {
	Capabilities map[string]any `json:"capabilities"`
}

func (s *Server) initialize(req *jsonrpc2.Request) (any, error) {
	s.logger.Info("initialize", "id", req.ID)
	return &initializeResult{
		Capabilities: map[string]any{
			"executeCommandProvider": map[string]any{
				"commands": []string{CommandFileStructure, CommandUpdateWorkspace},
			},
		},
	}, nil
}

type executeCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments"`
}

func (s *Server) executeCommand(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	s.mu.Lock()
	down := s.shutdown
	s.mu.Unlock()
	if down {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server is shutting down"}
	}

	if req.Params == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	var params executeCommandParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.track(req.ID, cancel)
	defer s.untrack(req.ID)

	s.logger.Debug("executeCommand", "command", params.Command, "id", req.ID)

	switch params.Command {
	case CommandFileStructure:
		return s.fileStructure(ctx, params.Arguments)
	case CommandUpdateWorkspace:
		return s.updateWorkspace(ctx, params.Arguments)
	}
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeInvalidParams,
		Message: fmt.Sprintf("unknown command: %s", params.Command),
	}
}

func (s *Server) fileStructure(ctx context.Context, args []json.RawMessage) (any, error) {
	var params FileStructureParams
	if err := unmarshalArg(args, &params); err != nil {
		return nil, err
	}

	nodes, err := s.engine.FileStructure(ctx, params.URI, params.ShowInherited)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, &jsonrpc2.Error{Code: codeRequestCancelled, Message: "request cancelled"}
		case errors.Is(err, chels.ErrNoRoot):
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		s.logger.Error("file structure failed", "uri", params.URI, "err", err)
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
	return nodes, nil
}

func (s *Server) updateWorkspace(ctx context.Context, args []json.RawMessage) (any, error) {
	var params UpdateWorkspaceParams
	if err := unmarshalArg(args, &params); err != nil {
		return nil, err
	}
	result := s.engine.UpdateWorkspace(ctx, params.AddedProjectsURI, params.RemovedProjectsURI)
	if result.Severity == chels.SeverityError {
		s.logger.Error("workspace update failed", "message", result.Message)
	}
	return result, nil
}

func unmarshalArg(args []json.RawMessage, v any) error {
	if len(args) == 0 {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing command argument"}
	}
	if err := json.Unmarshal(args[0], v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) cancelRequest(req *jsonrpc2.Request) {
	if req.Params == nil {
		return
	}
	var params struct {
		ID jsonrpc2.ID `json:"id"`
	}
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		s.logger.Warn("malformed $/cancelRequest", "err", err)
		return
	}
	s.mu.Lock()
	cancel := s.inflight[params.ID]
	s.mu.Unlock()
	if cancel != nil {
		s.logger.Debug("cancelling request", "id", params.ID)
		cancel()
	}
}

func (s *Server) track(id jsonrpc2.ID, cancel context.CancelFunc) {
	s.mu.Lock()
	s.inflight[id] = cancel
	s.mu.Unlock()
}

func (s *Server) untrack(id jsonrpc2.ID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
