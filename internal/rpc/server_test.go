package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/errs"
)

func TestServeDispatchesOneResponsePerLine(t *testing.T) {
	s := newTestServer(t, map[string]any{"filesIndexed": 1}, nil, nil)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"index","params":{"directory":"/a"}}` + "\n")
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), in, &out))

	scanner := bufio.NewScanner(&out)
	require.True(t, scanner.Scan())
	var resp response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestServeUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"nope"}` + "\n")
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), in, &out))

	var resp response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestServeInvalidJSONReturnsParseError(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	in := strings.NewReader(`not json` + "\n")
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), in, &out))

	var resp response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeParseError, resp.Error.Code)
}

func TestErrorForMapsBackpressureKind(t *testing.T) {
	err := errs.AgentBusyError("queue_full", 250)
	resp := errorFor(json.RawMessage(`1`), err)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeBackpressure, resp.Error.Code)
	require.NotNil(t, resp.Error.RetryAfterMs)
	require.Equal(t, 250, *resp.Error.RetryAfterMs)
}

func TestErrorForMapsInvalidInputKind(t *testing.T) {
	err := errs.New(errs.KindInvalidInput, "bad args")
	resp := errorFor(json.RawMessage(`1`), err)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestErrorForFallsBackToInternalErrorForPlainErrors(t *testing.T) {
	resp := errorFor(json.RawMessage(`1`), context.DeadlineExceeded)
	require.Equal(t, codeInternalError, resp.Error.Code)
}
