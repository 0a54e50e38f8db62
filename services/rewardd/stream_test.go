package rewardd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
)

func TestStreamDeliversFilteredEvents(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.server)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream?types=" + events.TypeRewardGranted
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token(t, "watcher"))
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return h.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	handle := h.issue("alice")
	rec := h.do("relayer", http.MethodPost, "/v1/invoke", map[string]interface{}{
		"handle":      handle,
		"campaign_id": "onboarding",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var frame streamFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, events.TypeRewardGranted, frame.Type)
	require.Equal(t, "onboarding", frame.Attributes["campaignId"])
	require.Equal(t, "alice", frame.Attributes["principal"])
	require.Equal(t, "100", frame.Attributes["amount"])
}

func TestStreamRequiresToken(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.server)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/stream", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	updates, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Emit(events.CampaignBudgetAdded{ID: "c"})
	}
	require.Len(t, updates, subscriberBuffer)
	require.EqualValues(t, 3, hub.Dropped())

	cancel()
	require.Zero(t, hub.Subscribers())
}
