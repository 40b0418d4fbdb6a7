package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/netrules-core/internal/coordinator"
	"github.com/nerrad567/netrules-core/internal/history"
	"github.com/nerrad567/netrules-core/internal/infrastructure/config"
	"github.com/nerrad567/netrules-core/internal/infrastructure/logging"
	"github.com/nerrad567/netrules-core/internal/poll"
	"github.com/nerrad567/netrules-core/internal/rules"
)

type fakeFetcher struct {
	data map[rules.Kind][]rules.RawEntity
}

func (f *fakeFetcher) FetchAll(_ context.Context) (map[rules.Kind][]rules.RawEntity, error) {
	return f.data, nil
}

type fieldWrite struct {
	kind  rules.Kind
	id    string
	field string
	value any
}

type fakeWriter struct {
	writes []fieldWrite
}

func (f *fakeWriter) SetField(_ context.Context, kind rules.Kind, id, field string, value any) error {
	f.writes = append(f.writes, fieldWrite{kind, id, field, value})
	return nil
}

type fakeAuth struct{}

func (fakeAuth) AuthInProgress() bool                        { return false }
func (fakeAuth) IsAuthError(error) bool                      { return false }
func (fakeAuth) HandleAuthError(context.Context, error) bool { return false }

type fakeHistory struct {
	filter history.Filter
	result *history.ListResult
}

func (f *fakeHistory) Create(_ context.Context, _ *history.Event) error { return nil }

func (f *fakeHistory) List(_ context.Context, filter history.Filter) (*history.ListResult, error) {
	f.filter = filter
	return f.result, nil
}

func testData() map[rules.Kind][]rules.RawEntity {
	return map[rules.Kind][]rules.RawEntity{
		rules.KindFirewallPolicies: {
			{"_id": "pol1", "name": "Block IoT", "enabled": true},
		},
		rules.KindTrafficRoutes: {
			{"_id": "route1", "description": "VPN egress", "enabled": true, "kill_switch_enabled": true},
		},
	}
}

func testSecurity() config.SecurityConfig {
	return config.SecurityConfig{
		JWT:   config.JWTConfig{Secret: "test-secret", AccessTokenTTL: 15},
		Admin: config.AdminConfig{Username: "admin", Password: "letmein"},
	}
}

// newTestServer builds a server around a coordinator primed with one
// fetch cycle. The returned writer records controller writes.
func newTestServer(t *testing.T, repo history.Repository) (*Server, *fakeWriter) {
	t.Helper()

	writer := &fakeWriter{}
	coord := coordinator.New(
		&fakeFetcher{data: testData()},
		writer,
		fakeAuth{},
		rules.NewDetector(nil),
		poll.New(poll.Config{}),
	)
	t.Cleanup(coord.Close)

	if _, err := coord.UpdateData(context.Background()); err != nil {
		t.Fatalf("priming coordinator: %v", err)
	}

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json"}, "test")
	srv, err := New(Deps{
		WS:          config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security:    testSecurity(),
		Logger:      logger,
		Coordinator: coord,
		History:     repo,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, writer
}

// doJSON performs a request against the router and decodes the JSON body.
func doJSON(t *testing.T, router http.Handler, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

// login obtains a valid access token through the login endpoint.
func login(t *testing.T, router http.Handler) string {
	t.Helper()

	var resp loginResponse
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		loginRequest{Username: "admin", Password: "letmein"}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return resp.AccessToken
}

func TestHealthNoAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()

	var resp map[string]any
	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", "", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		loginRequest{Username: "admin", Password: "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/status", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/status", "not-a-jwt", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	var status coordinator.Status
	rec := doJSON(t, router, http.MethodGet, "/api/v1/status", token, nil, &status)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !status.HasData {
		t.Error("expected HasData after primed cycle")
	}
	// route1 synthesises a kill-switch child alongside the two parents.
	if status.EntityCount != 3 {
		t.Errorf("entity count = %d, want 3", status.EntityCount)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/refresh", token, nil, nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestListKinds(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	var resp struct {
		Kinds []kindSummary `json:"kinds"`
	}
	rec := doJSON(t, router, http.MethodGet, "/api/v1/rules/", token, nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	counts := make(map[rules.Kind]int)
	for _, k := range resp.Kinds {
		counts[k.Kind] = k.Entities
	}
	if counts[rules.KindFirewallPolicies] != 1 {
		t.Errorf("firewall_policies count = %d, want 1", counts[rules.KindFirewallPolicies])
	}
	if counts[rules.KindTrafficRoutes] != 2 {
		t.Errorf("traffic_routes count = %d, want 2 (parent plus kill switch)", counts[rules.KindTrafficRoutes])
	}
}

func TestListEntities(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	var resp struct {
		Entities []entityRecord `json:"entities"`
	}
	rec := doJSON(t, router, http.MethodGet, "/api/v1/rules/traffic_routes/", token, nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(resp.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(resp.Entities))
	}
	if resp.Entities[0].EntityID != "route1" || resp.Entities[1].EntityID != "route1_kill_switch" {
		t.Errorf("unexpected entity order: %s, %s",
			resp.Entities[0].EntityID, resp.Entities[1].EntityID)
	}
}

func TestListEntitiesUnknownKind(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/rules/bogus_kind/", token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetEntity(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	var record entityRecord
	rec := doJSON(t, router, http.MethodGet, "/api/v1/rules/firewall_policies/pol1/", token, nil, &record)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if record.Fields["name"] != "Block IoT" {
		t.Errorf("name = %v, want Block IoT", record.Fields["name"])
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/rules/firewall_policies/missing/", token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing entity: status = %d, want 404", rec.Code)
	}
}

func TestSetEnabled(t *testing.T) {
	srv, writer := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/rules/firewall_policies/pol1/enabled", token,
		map[string]any{"enabled": false}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(writer.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writer.writes))
	}
	write := writer.writes[0]
	if write.id != "pol1" || write.field != "enabled" || write.value != false {
		t.Errorf("unexpected write: %+v", write)
	}
}

func TestSetEnabledKillSwitchTargetsParent(t *testing.T) {
	srv, writer := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/rules/traffic_routes/route1_kill_switch/enabled", token,
		map[string]any{"enabled": false}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	write := writer.writes[0]
	if write.id != "route1" || write.field != "kill_switch_enabled" {
		t.Errorf("unexpected write: %+v", write)
	}
}

func TestSetEnabledValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/rules/firewall_policies/pol1/enabled", token,
		map[string]any{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing enabled: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/v1/rules/bogus_kind/x/enabled", token,
		map[string]any{"enabled": true}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status = %d, want 400", rec.Code)
	}
}

func TestListChangesUnavailableWithoutRepo(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/changes", token, nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListChangesFilters(t *testing.T) {
	repo := &fakeHistory{result: &history.ListResult{Events: []history.Event{}, Limit: 10}}
	srv, _ := newTestServer(t, repo)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodGet,
		"/api/v1/changes?entity_id=pol1&type=firewall_policy&action=disabled&limit=10&offset=20",
		token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	want := history.Filter{
		EntityID: "pol1",
		Type:     "firewall_policy",
		Action:   rules.ActionDisabled,
		Limit:    10,
		Offset:   20,
	}
	if repo.filter != want {
		t.Errorf("filter = %+v, want %+v", repo.filter, want)
	}
}

func TestListChangesRejectsBadPagination(t *testing.T) {
	repo := &fakeHistory{result: &history.ListResult{}}
	srv, _ := newTestServer(t, repo)
	router := srv.buildRouter()
	token := login(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/changes?limit=abc", token, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWSTicketSingleUse(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.buildRouter()
	token := login(t, router)

	var resp struct {
		Ticket string `json:"ticket"`
	}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/ws-ticket", token, nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Ticket == "" {
		t.Fatal("empty ticket")
	}

	if !srv.validateTicket(resp.Ticket) {
		t.Error("fresh ticket rejected")
	}
	if srv.validateTicket(resp.Ticket) {
		t.Error("ticket accepted twice")
	}
}

func TestWebSocketRouteAuthenticatesWithTicketOnly(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json"}, "test")
	srv.hub = NewHub(srv.wsCfg, logger)
	go srv.hub.Run(ctx)

	router := srv.buildRouter()
	ts := httptest.NewServer(router)
	defer ts.Close()

	token := login(t, router)
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/ws-ticket", token, nil, &ticketResp)
	if rec.Code != http.StatusOK {
		t.Fatalf("ticket status = %d", rec.Code)
	}

	// No Authorization header on the dial: the ticket alone must
	// authenticate, since browser WebSocket clients cannot send one.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticketResp.Ticket
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial with valid ticket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}

	// Subscribe, then receive a broadcast through the live connection.
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelChanges}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("sending subscribe: %v", err)
	}

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %s, want %s", ack.Type, WSTypeResponse)
	}

	srv.hub.Broadcast(ChannelChanges, map[string]string{"entity_id": "pol1"})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelChanges {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestWebSocketRouteRejectsMissingOrBadTicket(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http")
	for _, wsURL := range []string{base + "/api/v1/ws", base + "/api/v1/ws?ticket=bogus"} {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			conn.Close()
			t.Fatalf("dial %s succeeded, want rejection", wsURL)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("dial %s: response = %+v, want 401", wsURL, resp)
		}
	}
}

func TestHubBroadcastToSubscribers(t *testing.T) {
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json"}, "test")
	hub := NewHub(config.WebSocketConfig{}, logger)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelChanges: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{},
	}
	hub.Register(client)
	hub.Register(other)

	hub.Broadcast(ChannelChanges, map[string]string{"entity_id": "pol1"})

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding broadcast: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != ChannelChanges {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}

	select {
	case <-other.send:
		t.Fatal("unsubscribed client received broadcast")
	default:
	}
}

func TestChangeDispatcherBroadcasts(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json"}, "test")
	srv.hub = NewHub(config.WebSocketConfig{}, logger)

	client := &WSClient{
		hub:  srv.hub,
		send: make(chan []byte, 2),
		subscriptions: map[string]struct{}{
			"changes.disabled": {},
		},
	}
	srv.hub.Register(client)

	dispatcher := srv.ChangeDispatcher()
	err := dispatcher.Dispatch(context.Background(), rules.Change{
		EntityID: "pol1",
		Type:     "firewall_policy",
		Action:   rules.ActionDisabled,
		Name:     "Block IoT",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding broadcast: %v", err)
		}
		if msg.EventType != "changes.disabled" {
			t.Errorf("event type = %s, want changes.disabled", msg.EventType)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}
}
