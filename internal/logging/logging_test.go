package logging

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTestLogger installs a null logger with a capturing hook for the
// duration of the test.
func useTestLogger(t *testing.T) *test.Hook {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	prev := SetLogger(logger)
	t.Cleanup(func() { SetLogger(prev) })
	return hook
}

func TestInit(t *testing.T) {
	prev := SetLogger(newLogger(io.Discard))
	t.Cleanup(func() { SetLogger(prev) })

	require.NoError(t, Init("debug", FormatText))
	assert.Equal(t, logrus.DebugLevel, Logger().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Logger().Formatter)

	require.NoError(t, Init("", ""))
	assert.Equal(t, logrus.InfoLevel, Logger().GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Logger().Formatter)

	assert.Error(t, Init("loud", FormatJSON))
	assert.Error(t, Init("info", "xml"))
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))

	entry := FromContext(ctx)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.NotContains(t, FromContext(context.Background()).Data, "request_id")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	t.Run("generates an ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("reuses caller ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	})
}

func TestAccessLogMiddleware(t *testing.T) {
	hook := useTestLogger(t)

	h := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tables", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusConflict, entry.Data["status"])
	assert.Equal(t, "/api/tables", entry.Data["path"])
	assert.Equal(t, http.MethodPost, entry.Data["method"])
	assert.NotEmpty(t, entry.Data["request_id"])
}
