package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func echo(_ context.Context, payload []byte) ([]byte, error) { return payload, nil }

func TestCall(t *testing.T) {
	r := New()
	r.Handle(GetOrderHistory, echo)

	out, err := r.Call(context.Background(), GetOrderHistory, []byte(`{"a":1}`))
	if err != nil || string(out) != `{"a":1}` {
		t.Fatalf("Call = %s, %v", out, err)
	}
	out, err = r.Call(context.Background(), GetOrderHistory, nil)
	if err != nil || string(out) != `{}` {
		t.Fatalf("empty payload = %s, %v", out, err)
	}
}

func TestCall_Unknown(t *testing.T) {
	r := New()
	_, err := r.Call(context.Background(), "NOPE", nil)
	var unknown *ErrUnknownMessage
	if !errors.As(err, &unknown) || unknown.Type != "NOPE" {
		t.Fatalf("err = %v", err)
	}
}

func TestCall_HandlerError(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	r.Handle(RetryOrder, func(context.Context, []byte) ([]byte, error) { return nil, boom })
	if _, err := r.Call(context.Background(), RetryOrder, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatch(t *testing.T) {
	r := New()
	r.Handle(ProcessOrder, echo)

	out, err := r.Dispatch(context.Background(), []byte(`{"type":"PROCESS_ORDER","payload":{"order":{"id":"o-1"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"o-1"`) {
		t.Fatalf("out = %s", out)
	}
	if _, err := r.Dispatch(context.Background(), []byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTypes(t *testing.T) {
	r := New()
	r.Handle(RetryOrder, echo)
	r.Handle(GetInFlight, echo)
	if got := strings.Join(r.Types(), ","); got != "GET_IN_FLIGHT,RETRY_ORDER" {
		t.Fatalf("Types = %s", got)
	}
}

var testImpl = &mcp.Implementation{Name: "bridge-test", Version: "0.1.0"}

func TestRegisterMCPTool(t *testing.T) {
	r := New()
	r.Handle(DetectPlatform, echo)
	r.Handle(RetryOrder, func(context.Context, []byte) ([]byte, error) { return nil, errors.New("nope") })

	srv := mcp.NewServer(testImpl, nil)
	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: InputSchema(map[string]any{"url": map[string]any{"type": "string"}}, []string{"url"}),
	}, DetectPlatform)
	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "fail",
		InputSchema: InputSchema(map[string]any{}, nil),
	}, RetryOrder)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"url": "https://x.test"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}
	if txt := res.Content[0].(*mcp.TextContent).Text; !strings.Contains(txt, "https://x.test") {
		t.Fatalf("text = %s", txt)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "fail", Arguments: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected tool error")
	}
}
