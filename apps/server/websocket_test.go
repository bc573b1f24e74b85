package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notedhq/noted/pkg/model"
	"github.com/stretchr/testify/require"
)

func wsURL(ts *httptest.Server, groupID int64, token string) string {
	base := "ws" + strings.TrimPrefix(ts.URL, "http")
	return fmt.Sprintf("%s/ws/chat/%d?token=%s", base, groupID, token)
}

func dialChat(t *testing.T, ts *httptest.Server, groupID int64, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, groupID, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) model.ChatEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev model.ChatEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestChatFanOutWithCanonicalEcho(t *testing.T) {
	req := require.New(t)
	srv, ts := newTestServer(t)

	aliceID, aliceToken := signup(t, ts, "alice")
	_, bobToken := signup(t, ts, "bob")
	g := createGroup(t, ts, aliceToken, "group7")
	resp := doJSON(t, ts, "POST", fmt.Sprintf("/api/groups/%d/join", g.ID), bobToken, nil)
	resp.Body.Close()

	alice := dialChat(t, ts, g.ID, aliceToken)
	bob := dialChat(t, ts, g.ID, bobToken)

	require.Eventually(t, func() bool { return srv.hub.GroupSize(g.ID) == 2 },
		time.Second, 10*time.Millisecond)

	req.NoError(alice.WriteJSON(map[string]string{"message": "hi"}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		req.Equal(model.EventMessage, ev.Type)
		req.Equal("hi", ev.Content)
		req.Equal(aliceID, ev.Sender.ID)
		req.Equal("alice", ev.Sender.Username)
		req.NotZero(ev.ID, "frame carries the server-assigned id")
		req.False(ev.CreatedAt.IsZero(), "frame carries the server timestamp")
	}

	// Exactly one row persisted.
	histResp := doJSON(t, ts, "GET", fmt.Sprintf("/api/groups/%d/messages", g.ID), aliceToken, nil)
	messages := decodeBody[[]model.Message](t, histResp)
	req.Len(messages, 1)
	req.Equal("hi", messages[0].Content)
}

func TestNonMemberRejectedSilently(t *testing.T) {
	req := require.New(t)
	srv, ts := newTestServer(t)

	_, ownerToken := signup(t, ts, "owner")
	_, strangerToken := signup(t, ts, "stranger")
	g := createGroup(t, ts, ownerToken, "private")

	// Valid credential, but not a member: the handshake fails and nothing
	// is registered.
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, g.ID, strangerToken), nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Equal(0, srv.hub.GroupSize(g.ID))
}

func TestBadCredentialRejected(t *testing.T) {
	req := require.New(t)
	srv, ts := newTestServer(t)

	_, ownerToken := signup(t, ts, "owner")
	g := createGroup(t, ts, ownerToken, "private")

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, g.ID, token), nil)
		req.Error(err, "token %q", token)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	}
	req.Equal(0, srv.hub.GroupSize(g.ID))
}

func TestRefreshTokenCannotOpenChannel(t *testing.T) {
	req := require.New(t)
	srv, ts := newTestServer(t)

	_, ownerToken := signup(t, ts, "owner")
	g := createGroup(t, ts, ownerToken, "private")

	resp := doJSON(t, ts, "POST", "/api/auth/login", "", map[string]string{
		"username": "owner", "password": "password123",
	})
	tokens := decodeBody[tokenResponse](t, resp)

	_, hresp, err := websocket.DefaultDialer.Dial(wsURL(ts, g.ID, tokens.RefreshToken), nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, hresp.StatusCode)
	req.Equal(0, srv.hub.GroupSize(g.ID))
}

func TestMalformedFramesDroppedConnectionStaysOpen(t *testing.T) {
	req := require.New(t)
	_, ts := newTestServer(t)

	_, token := signup(t, ts, "alice")
	g := createGroup(t, ts, token, "resilient")
	conn := dialChat(t, ts, g.ID, token)

	for _, frame := range []string{"not json", "{}", `{"message":""}`, `{"other":"field"}`} {
		req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(frame)))
	}

	// None of the malformed frames produced a broadcast...
	req.NoError(conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	var ev model.ChatEvent
	req.Error(conn.ReadJSON(&ev), "malformed frames must not be echoed")

	// ...and the connection is still open: a valid frame goes through.
	req.NoError(conn.WriteJSON(map[string]string{"message": "still here"}))
	ev = readEvent(t, conn)
	req.Equal("still here", ev.Content)

	histResp := doJSON(t, ts, "GET", fmt.Sprintf("/api/groups/%d/messages", g.ID), token, nil)
	messages := decodeBody[[]model.Message](t, histResp)
	req.Len(messages, 1, "only the valid frame was persisted")
}

func TestContentAliasAccepted(t *testing.T) {
	req := require.New(t)
	_, ts := newTestServer(t)

	_, token := signup(t, ts, "alice")
	g := createGroup(t, ts, token, "alias")
	conn := dialChat(t, ts, g.ID, token)

	req.NoError(conn.WriteJSON(map[string]string{"content": "via alias"}))
	ev := readEvent(t, conn)
	req.Equal("via alias", ev.Content)
}

func TestAbruptDisconnectLeavesNoRegistration(t *testing.T) {
	req := require.New(t)
	srv, ts := newTestServer(t)

	_, token := signup(t, ts, "alice")
	g := createGroup(t, ts, token, "flaky")
	conn := dialChat(t, ts, g.ID, token)

	require.Eventually(t, func() bool { return srv.hub.GroupSize(g.ID) == 1 },
		time.Second, 10*time.Millisecond)

	// Kill the TCP connection without a close frame.
	req.NoError(conn.UnderlyingConn().Close())

	require.Eventually(t, func() bool { return srv.hub.GroupSize(g.ID) == 0 },
		2*time.Second, 10*time.Millisecond, "handle must be deregistered after transport loss")
}

func TestCleanCloseLeavesNoRegistration(t *testing.T) {
	req := require.New(t)
	srv, ts := newTestServer(t)

	_, token := signup(t, ts, "alice")
	g := createGroup(t, ts, token, "tidy")
	conn := dialChat(t, ts, g.ID, token)

	require.Eventually(t, func() bool { return srv.hub.GroupSize(g.ID) == 1 },
		time.Second, 10*time.Millisecond)

	req.NoError(conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	require.Eventually(t, func() bool { return srv.hub.GroupSize(g.ID) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestBroadcastScopedToGroup(t *testing.T) {
	req := require.New(t)
	_, ts := newTestServer(t)

	_, token := signup(t, ts, "alice")
	g1 := createGroup(t, ts, token, "first")
	g2 := createGroup(t, ts, token, "second")

	conn1 := dialChat(t, ts, g1.ID, token)
	conn2 := dialChat(t, ts, g2.ID, token)

	req.NoError(conn1.WriteJSON(map[string]string{"message": "only for first"}))

	ev := readEvent(t, conn1)
	req.Equal("only for first", ev.Content)

	req.NoError(conn2.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	var other model.ChatEvent
	req.Error(conn2.ReadJSON(&other), "message must not cross groups")
}

func TestRESTMessageReachesChannel(t *testing.T) {
	req := require.New(t)
	_, ts := newTestServer(t)

	_, token := signup(t, ts, "alice")
	g := createGroup(t, ts, token, "mixed")
	conn := dialChat(t, ts, g.ID, token)

	resp := doJSON(t, ts, "POST", fmt.Sprintf("/api/groups/%d/messages", g.ID), token, map[string]string{
		"content": "posted over http",
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	ev := readEvent(t, conn)
	req.Equal("posted over http", ev.Content)
}

func TestPersistenceFailureReportedToSenderOnly(t *testing.T) {
	req := require.New(t)
	srv, ts := newTestServer(t)

	_, ownerToken := signup(t, ts, "owner")
	_, peerToken := signup(t, ts, "peer")
	g := createGroup(t, ts, ownerToken, "doomed")
	resp := doJSON(t, ts, "POST", fmt.Sprintf("/api/groups/%d/join", g.ID), peerToken, nil)
	resp.Body.Close()

	owner := dialChat(t, ts, g.ID, ownerToken)
	peer := dialChat(t, ts, g.ID, peerToken)

	require.Eventually(t, func() bool { return srv.hub.GroupSize(g.ID) == 2 },
		time.Second, 10*time.Millisecond)

	// The group vanishes while both connections are live.
	delResp := doJSON(t, ts, "DELETE", fmt.Sprintf("/api/groups/%d", g.ID), ownerToken, nil)
	req.Equal(http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()

	req.NoError(owner.WriteJSON(map[string]string{"message": "anyone there?"}))

	ev := readEvent(t, owner)
	req.Equal(model.EventError, ev.Type)
	req.NotEmpty(ev.Detail)

	// The peer never hears about it.
	req.NoError(peer.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	var none model.ChatEvent
	req.Error(peer.ReadJSON(&none))

	// The sender's connection survived the failure.
	raw, err := json.Marshal(map[string]string{"message": "retry"})
	req.NoError(err)
	req.NoError(owner.WriteMessage(websocket.TextMessage, raw))
}
