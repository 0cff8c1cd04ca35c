package sentinel

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	err   error
	calls int
}

func (f *fakeCloser) Close() error {
	f.calls++
	return f.err
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestCloseWithLog(t *testing.T) {
	tests := []struct {
		name    string
		closer  *fakeCloser
		wantLog []string
	}{
		{
			name:   "successful close is silent",
			closer: &fakeCloser{},
		},
		{
			name:    "close error is logged at warn",
			closer:  &fakeCloser{err: errors.New("connection reset")},
			wantLog: []string{"level=WARN", "failed to close resource", "redis client", "connection reset"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger()

			CloseWithLog(tt.closer, logger, "redis client")

			assert.Equal(t, 1, tt.closer.calls)
			if len(tt.wantLog) == 0 {
				assert.Empty(t, buf.String())
			}
			for _, want := range tt.wantLog {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestCloseWithLog_NilCloser(t *testing.T) {
	logger, buf := bufferLogger()

	CloseWithLog(nil, logger, "nothing")

	assert.Empty(t, buf.String())
}

func TestCloseWithLog_NilLogger(t *testing.T) {
	closer := &fakeCloser{err: errors.New("boom")}

	require.NotPanics(t, func() {
		CloseWithLog(closer, nil, "etcd client")
	})
	assert.Equal(t, 1, closer.calls)
}

func TestCloseWithLog_Deferred(t *testing.T) {
	logger, buf := bufferLogger()
	ok := &fakeCloser{}
	failing := &fakeCloser{err: errors.New("lease revoke failed")}

	func() {
		defer CloseWithLog(failing, logger, "registry")
		defer CloseWithLog(ok, logger, "queue")
	}()

	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, failing.calls)
	assert.Contains(t, buf.String(), "registry")
	assert.Contains(t, buf.String(), "lease revoke failed")
	assert.NotContains(t, buf.String(), "queue")
}
