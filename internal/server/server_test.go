package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	chels "github.com/bdshadow/che-ls-jdt"
)

type noopHandler struct{}

func (noopHandler) Handle(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) {}

// startServer wires a server and a client over an in-memory pipe and
// returns the client connection.
func startServer(t *testing.T, engine *chels.Engine) *jsonrpc2.Conn {
	t.Helper()
	srvConn, cliConn := net.Pipe()
	srv := New(engine, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go srv.Run(context.Background(), srvConn)

	stream := jsonrpc2.NewBufferedStream(cliConn, jsonrpc2.VSCodeObjectCodec{})
	client := jsonrpc2.NewConn(context.Background(), stream, noopHandler{})
	t.Cleanup(func() { client.Close() })
	return client
}

func testEngine(t *testing.T) (*chels.Engine, string) {
	t.Helper()
	engine, err := chels.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	dir := t.TempDir()
	path := filepath.Join(dir, "Greeter.java")
	src := "package p;\n\npublic class Greeter {\n    public void greet() {}\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	require.NoError(t, engine.IndexDirectory(context.Background(), dir))
	return engine, path
}

func TestInitializeAdvertisesCommands(t *testing.T) {
	engine, _ := testEngine(t)
	client := startServer(t, engine)

	var result struct {
		Capabilities struct {
			ExecuteCommandProvider struct {
				Commands []string `json:"commands"`
			} `json:"executeCommandProvider"`
		} `json:"capabilities"`
	}
	require.NoError(t, client.Call(context.Background(), "initialize", map[string]any{}, &result))
	assert.ElementsMatch(t,
		[]string{CommandFileStructure, CommandUpdateWorkspace},
		result.Capabilities.ExecuteCommandProvider.Commands)
}

func TestExecuteFileStructure(t *testing.T) {
	engine, path := testEngine(t)
	client := startServer(t, engine)

	params := map[string]any{
		"command": CommandFileStructure,
		"arguments": []any{FileStructureParams{
			URI: string(uri.File(path)),
		}},
	}
	var nodes []*chels.SymbolNode
	require.NoError(t, client.Call(context.Background(), "workspace/executeCommand", params, &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, "Greeter", nodes[0].Name)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, "greet() : void", nodes[0].Children[0].Name)
}

func TestExecuteFileStructureUnknownURI(t *testing.T) {
	engine, _ := testEngine(t)
	client := startServer(t, engine)

	params := map[string]any{
		"command":   CommandFileStructure,
		"arguments": []any{FileStructureParams{URI: "file:///nowhere/Missing.java"}},
	}
	var nodes []*chels.SymbolNode
	err := client.Call(context.Background(), "workspace/executeCommand", params, &nodes)
	require.Error(t, err)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}

func TestExecuteUpdateWorkspace(t *testing.T) {
	engine, path := testEngine(t)
	client := startServer(t, engine)

	params := map[string]any{
		"command": CommandUpdateWorkspace,
		"arguments": []any{UpdateWorkspaceParams{
			RemovedProjectsURI: []string{string(uri.File(filepath.Dir(path)))},
		}},
	}
	var result chels.JobResult
	require.NoError(t, client.Call(context.Background(), "workspace/executeCommand", params, &result))
	assert.Equal(t, chels.SeverityOK, result.Severity)

	// The removed project's files are gone from the index.
	fsParams := map[string]any{
		"command":   CommandFileStructure,
		"arguments": []any{FileStructureParams{URI: string(uri.File(path))}},
	}
	var nodes []*chels.SymbolNode
	require.Error(t, client.Call(context.Background(), "workspace/executeCommand", fsParams, &nodes))
}

func TestExecuteUnknownCommand(t *testing.T) {
	engine, _ := testEngine(t)
	client := startServer(t, engine)

	params := map[string]any{"command": "che.jdt.ls.extension.unknown"}
	var result any
	err := client.Call(context.Background(), "workspace/executeCommand", params, &result)
	require.Error(t, err)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}

func TestUnsupportedMethod(t *testing.T) {
	engine, _ := testEngine(t)
	client := startServer(t, engine)

	var result any
	err := client.Call(context.Background(), "textDocument/definition", nil, &result)
	require.Error(t, err)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
}

func TestShutdownRejectsFurtherCommands(t *testing.T) {
	engine, path := testEngine(t)
	client := startServer(t, engine)

	var ack any
	require.NoError(t, client.Call(context.Background(), "shutdown", nil, &ack))

	params := map[string]any{
		"command":   CommandFileStructure,
		"arguments": []any{FileStructureParams{URI: string(uri.File(path))}},
	}
	var nodes []*chels.SymbolNode
	err := client.Call(context.Background(), "workspace/executeCommand", params, &nodes)
	require.Error(t, err)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidRequest), rpcErr.Code)
}

func TestCancelUnknownRequestIsHarmless(t *testing.T) {
	engine, path := testEngine(t)
	client := startServer(t, engine)

	require.NoError(t, client.Notify(context.Background(), "$/cancelRequest",
		map[string]any{"id": 9999}))

	// The connection still answers afterwards.
	params := map[string]any{
		"command":   CommandFileStructure,
		"arguments": []any{FileStructureParams{URI: string(uri.File(path))}},
	}
	var nodes []*chels.SymbolNode
	require.NoError(t, client.Call(context.Background(), "workspace/executeCommand", params, &nodes))
	require.Len(t, nodes, 1)
}
