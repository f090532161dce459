package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/chatterbox-im/chatterbox-server/internal/proto"
)

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal inbound: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write inbound: %v", err)
	}
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Outbound {
	t.Helper()

	var outbound proto.Outbound
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return outbound
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, err = ts.Client().Get(ts.URL + "/ws?token=garbage")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestWebSocketDialRegistersSession(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	token := env.registerUser(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dialWS(t, ctx, ts, token)

	// A successful dial must produce a live handle; an upgrade that fails
	// server-side leaves the registry empty while the client hangs.
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Sessions().Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no session registered after a successful dial")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketChannelFlow(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	aliceToken := env.registerUser(t, "alice")
	bobToken := env.registerUser(t, "bob")
	channel := createChannel(t, env, aliceToken, "general")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts, aliceToken)
	bob := dialWS(t, ctx, ts, bobToken)

	sendInbound(t, ctx, alice, proto.InboundTypeJoinChannel, proto.JoinChannelData{ChannelID: channel.ID})
	sendInbound(t, ctx, bob, proto.InboundTypeJoinChannel, proto.JoinChannelData{ChannelID: channel.ID})

	// Joins race the send below; give the hub a moment to apply them.
	deadline := time.Now().Add(2 * time.Second)
	for len(env.hub.Rooms().MembersOf(channel.ID)) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never joined the channel")
		}
		time.Sleep(10 * time.Millisecond)
	}

	channelID := channel.ID
	sendInbound(t, ctx, alice, proto.InboundTypeSendMessage, proto.SendMessageData{
		Content:   "hi there",
		ChannelID: &channelID,
	})

	// Alice gets the ack first, then her own copy as a live member.
	ack := readOutbound(t, ctx, alice)
	if ack.Type != proto.OutboundTypeAck || ack.Success == nil || !*ack.Success {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	msg := readOutbound(t, ctx, bob)
	if msg.Type != proto.OutboundTypeMessageNew {
		t.Fatalf("unexpected outbound type: %s", msg.Type)
	}
	data, err := json.Marshal(msg.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var payload proto.MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal message payload: %v", err)
	}
	if payload.Content != "hi there" || payload.Author.Username != "alice" {
		t.Fatalf("unexpected message payload: %+v", payload)
	}
	if payload.ChannelID == nil || *payload.ChannelID != channel.ID {
		t.Fatalf("message addressed to wrong channel: %+v", payload)
	}
}

func TestWebSocketHistoryRequest(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	aliceToken := env.registerUser(t, "alice")
	alice := env.userByName(t, "alice")
	channel := createChannel(t, env, aliceToken, "general")
	for _, content := range []string{"one", "two", "three"} {
		env.seedChannelMessage(t, alice, channel.ID, content)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts, aliceToken)
	sendInbound(t, ctx, conn, proto.InboundTypeHistory, proto.HistoryData{
		ChannelID: channel.ID,
		Limit:     2,
	})

	outbound := readOutbound(t, ctx, conn)
	if outbound.Type != proto.OutboundTypeAck || outbound.Op != proto.InboundTypeHistory {
		t.Fatalf("unexpected outbound: %+v", outbound)
	}
	if outbound.Total == nil || *outbound.Total != 3 {
		t.Fatalf("expected total 3, got %+v", outbound.Total)
	}
	if outbound.HasMore == nil || !*outbound.HasMore {
		t.Fatal("expected hasMore true")
	}
	if outbound.Count == nil || *outbound.Count != 2 {
		t.Fatalf("expected count 2, got %+v", outbound.Count)
	}
}

func TestWebSocketQuietListenerSurvivesIdleWindow(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 400 * time.Millisecond
	cfg.PingInterval = 100 * time.Millisecond
	env := newTestEnvWithConfig(t, cfg)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	bobToken := env.registerUser(t, "bob")
	aliceToken := env.registerUser(t, "alice")
	channel := createChannel(t, env, aliceToken, "general")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bob := dialWS(t, ctx, ts, bobToken)
	sendInbound(t, ctx, bob, proto.InboundTypeJoinChannel, proto.JoinChannelData{ChannelID: channel.ID})

	deadline := time.Now().Add(2 * time.Second)
	for len(env.hub.Rooms().MembersOf(channel.ID)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("bob never joined the channel")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// From here bob only listens; the pending read answers server pings.
	got := make(chan proto.Outbound, 1)
	go func() {
		var out proto.Outbound
		if err := wsjson.Read(ctx, bob, &out); err != nil {
			return
		}
		got <- out
	}()

	// Several ping cycles with no application traffic in either direction.
	time.Sleep(3 * cfg.IdleTimeout)
	if len(env.hub.Rooms().MembersOf(channel.ID)) == 0 {
		t.Fatal("quiet listener was reaped despite answering pings")
	}

	alice := dialWS(t, ctx, ts, aliceToken)
	channelID := channel.ID
	sendInbound(t, ctx, alice, proto.InboundTypeSendMessage, proto.SendMessageData{
		Content:   "still there?",
		ChannelID: &channelID,
	})

	select {
	case out := <-got:
		if out.Type != proto.OutboundTypeMessageNew {
			t.Fatalf("unexpected outbound type: %s", out.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("quiet listener never received the message")
	}
}

func TestWebSocketUnknownTypeReturnsError(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	token := env.registerUser(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts, token)
	sendInbound(t, ctx, conn, "bogus-type", struct{}{})

	outbound := readOutbound(t, ctx, conn)
	if outbound.Type != proto.OutboundTypeError || outbound.Error == nil {
		t.Fatalf("expected error outbound, got %+v", outbound)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
