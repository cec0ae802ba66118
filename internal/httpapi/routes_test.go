package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/whist-client/internal/hub"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

type testServer struct {
	t   *testing.T
	url string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(SetupRoutes(hub.NewHub(ctx, nil), DefaultOptions()))
	t.Cleanup(srv.Close)
	return &testServer{t: t, url: srv.URL}
}

// do sends body as JSON (or as a form when it is url.Values) and decodes the
// response into out when out is not nil.
func (s *testServer) do(method, path, token string, body any, out any) int {
	s.t.Helper()
	var req *http.Request
	var err error
	switch b := body.(type) {
	case nil:
		req, err = http.NewRequest(method, s.url+path, nil)
	case url.Values:
		req, err = http.NewRequest(method, s.url+path, strings.NewReader(b.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		data, merr := json.Marshal(b)
		require.NoError(s.t, merr)
		req, err = http.NewRequest(method, s.url+path, strings.NewReader(string(data)))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	require.NoError(s.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 {
		require.NoError(s.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	var created types.UserCreateResponse
	require.Equal(s.t, http.StatusOK, s.do(http.MethodPost, "/user/create", "",
		types.UserCreateRequest{Username: username, Password: password}, &created))

	var res types.LoginResponse
	require.Equal(s.t, http.StatusOK, s.do(http.MethodPost, "/user/auth", "",
		url.Values{"username": {username}, "password": {password}}, &res))
	require.Equal(s.t, "Bearer", res.TokenType)
	return res.AccessToken
}

func ptr[T any](v T) *T { return &v }

func TestInfo(t *testing.T) {
	s := newTestServer(t)
	var info types.InfoResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/", "", nil, &info))
	assert.Equal(t, "whist", info.Info.Game)
}

func TestUsers(t *testing.T) {
	s := newTestServer(t)
	s.login("ann", "secret")

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/user/create", "",
		types.UserCreateRequest{Username: "ann", Password: "x"}, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/user/auth", "",
		url.Values{"username": {"ann"}, "password": {"nope"}}, nil))
}

func TestRoomRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/room/info/ids", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/room/info/ids", "forged", nil, nil))
}

func TestRoomLifecycle(t *testing.T) {
	s := newTestServer(t)
	ann := s.login("ann", "a")
	bob := s.login("bob", "b")
	cat := s.login("cat", "c")

	var reconnect types.RoomReconnectResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/room/reconnect", ann, nil, &reconnect))
	assert.Equal(t, types.StatusNotJoined, reconnect.Status)

	var created types.RoomCreateResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/room/create", ann,
		types.RoomCreateRequest{RoomName: "table", Password: ptr("pw"), MinPlayer: ptr(2), MaxPlayer: ptr(2)}, &created))
	id := created.RoomID
	require.NotEmpty(t, id)

	var list types.RoomListResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/room/info/ids", bob, nil, &list))
	assert.Equal(t, []string{id}, list.Rooms)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/room/reconnect", ann, nil, &reconnect))
	assert.Equal(t, types.StatusAlreadyJoined, reconnect.Status)
	require.NotNil(t, reconnect.RoomID)
	assert.Equal(t, id, *reconnect.RoomID)
	require.NotNil(t, reconnect.Password)
	assert.True(t, *reconnect.Password)

	assert.Equal(t, http.StatusPreconditionFailed, s.do(http.MethodPost, "/room/start/"+id, ann, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/room/join/"+id, bob,
		types.RoomJoinRequest{Password: ptr("wrong")}, nil))

	var joined types.RoomJoinResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/room/join/"+id, bob,
		types.RoomJoinRequest{Password: ptr("pw")}, &joined))
	assert.Equal(t, types.StatusJoined, joined.Status)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/room/join/"+id, bob,
		types.RoomJoinRequest{Password: ptr("pw")}, &joined))
	assert.Equal(t, types.StatusAlreadyJoined, joined.Status)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/room/join/"+id, cat,
		types.RoomJoinRequest{Password: ptr("pw")}, nil))

	var info types.RoomInfo
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/room/info/"+id, cat, nil, &info))
	assert.Equal(t, types.PhaseReadyToStart, info.Phase)
	assert.Len(t, info.Players, 2)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/room/start/"+id, ann, nil, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/room/info/"+id, cat, nil, &info))
	assert.Equal(t, types.PhasePlaying, info.Phase)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/room/info/nope", cat, nil, nil))
}

func TestDeviceFlow(t *testing.T) {
	s := newTestServer(t)

	var flow types.DeviceCodeResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/login/device/code", "",
		types.DeviceCodeRequest{ClientID: "app"}, &flow))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/oauth2/github/device", "",
		types.SwapTokenRequest{DeviceCode: flow.DeviceCode}, nil))

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/login/device/confirm", "",
		DeviceConfirmRequest{UserCode: flow.UserCode, Username: "octocat"}, nil))

	var token types.LoginResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/oauth2/github/device", "",
		types.SwapTokenRequest{DeviceCode: flow.DeviceCode}, &token))
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/room/info/ids", token.AccessToken, nil, nil))
}

func TestSubscribe_SnapshotAndChat(t *testing.T) {
	s := newTestServer(t)
	ann := s.login("ann", "a")
	bob := s.login("bob", "b")

	var created types.RoomCreateResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/room/create", ann,
		types.RoomCreateRequest{RoomName: "table"}, &created))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/room/subscribe/" + created.RoomID

	_, res, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + bob}},
	})
	require.Error(t, err, "bob is not seated")
	if res != nil {
		assert.Equal(t, http.StatusForbidden, res.StatusCode)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + ann}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "RoomSnapshot", msg.Type)
	require.NotNil(t, msg.Room)
	assert.Equal(t, created.RoomID, msg.Room.ID)

	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "Chat", Text: "hello"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "Chat", msg.Type)
	assert.Equal(t, "ann", msg.From)
	assert.Equal(t, "hello", msg.Text)

	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "Bid"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "Error", msg.Type)
}
