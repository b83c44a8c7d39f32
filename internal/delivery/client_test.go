package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
}

func TestSendStampsPayloadAndParsesAck(t *testing.T) {
	var gotAuth string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"acknowledgementId":"ack-1","receivedAt":"2026-03-01T10:05:01Z","message":"queued","extra":true}`)
	}))
	defer srv.Close()

	c := &Client{Source: "capture-agent", Now: fixedNow}
	ack, err := c.Send(context.Background(), srv.URL, map[string]any{"taskId": "t1", "content": "x"}, Bearer("tok"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "capture-agent", got["source"])
	assert.Equal(t, "2026-03-01T10:05:00Z", got["sentAt"])
	assert.Equal(t, "t1", got["taskId"])
	assert.Equal(t, "ack-1", ack.AcknowledgementID)
	assert.Equal(t, "queued", ack.Message)
	assert.Equal(t, http.StatusOK, ack.StatusCode)
}

func TestSendMalformedSuccessBodyYieldsEmptyAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	var out struct{ ID string }
	ack, err := (&Client{}).SendInto(context.Background(), srv.URL, map[string]string{"a": "b"}, "", &out)
	require.NoError(t, err)
	assert.Empty(t, ack.AcknowledgementID)
	assert.Empty(t, ack.ReceivedAt)
	assert.Empty(t, out.ID)
	assert.Equal(t, http.StatusAccepted, ack.StatusCode)
}

func TestSendNon2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"user is not a member of organization org-a"}`)
	}))
	defer srv.Close()

	_, err := (&Client{}).Send(context.Background(), srv.URL, map[string]string{}, "")
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusForbidden, de.StatusCode)
	assert.Equal(t, "user is not a member of organization org-a", de.Message())
}

func TestSendTransportError(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = (&Client{Timeout: time.Second}).Send(context.Background(), "http://"+addr+"/v0/snapshots", map[string]string{}, "")
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, te.Endpoint, addr)
	var de *DeliveryError
	assert.False(t, errors.As(err, &de))
}

func TestSendTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := (&Client{Timeout: 50 * time.Millisecond}).Send(context.Background(), srv.URL, map[string]string{}, "")
	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestSendLeavesNonObjectPayloadUnstamped(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	_, err := (&Client{Source: "gw"}).Send(context.Background(), srv.URL, []int{1, 2}, "")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(raw))
}

func TestBearer(t *testing.T) {
	assert.Equal(t, "", Bearer(""))
	assert.Equal(t, "", Bearer("   "))
	assert.Equal(t, "Bearer abc", Bearer("abc"))
	assert.Equal(t, "bearer abc", Bearer("bearer abc"))
}
