package notifier

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

func TestNewWithoutTokenIsNoop(t *testing.T) {
	svc, err := New(config.NewHardCoded())
	require.NoError(t, err)
	assert.Equal(t, "noop", svc.Name())
	assert.NoError(t, svc.Notify(model.DetectionEvent{}, nil))
}

func TestTelegramSendsPhoto(t *testing.T) {
	var photos atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"crackwatch","username":"crackwatch_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendPhoto"):
			photos.Add(1)
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.Write([]byte(`{"ok":false,"error_code":404,"description":"not found"}`))
		}
	}))
	defer server.Close()

	svc, err := NewTelegram("token", server.URL+"/bot%s/%s", 42)
	require.NoError(t, err)
	assert.Equal(t, "telegram", svc.Name())

	err = svc.Notify(model.DetectionEvent{Filename: "frame.jpg", Label: "crack", Confidence: 0.91, Count: 1}, []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), photos.Load())
}

func TestTelegramRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	_, err := NewTelegram("bad", server.URL+"/bot%s/%s", 42)
	assert.Error(t, err)
}
