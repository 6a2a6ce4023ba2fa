package errors

import (
	"bytes"
	stderrors "errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubCloser struct {
	err    error
	closed bool
}

func (s *stubCloser) Close() error {
	s.closed = true
	return s.err
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     *stubCloser
		wantLogged bool
	}{
		{name: "nil closer"},
		{name: "clean close", closer: &stubCloser{}},
		{name: "failing close", closer: &stubCloser{err: stderrors.New("disk gone")}, wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			var closer io.Closer
			if tt.closer != nil {
				closer = tt.closer
			}
			DeferClose(logger, closer, "close upload")

			if tt.closer != nil {
				assert.True(t, tt.closer.closed)
			}
			assert.Equal(t, tt.wantLogged, buf.Len() > 0)
			if tt.wantLogged {
				assert.Contains(t, buf.String(), "close upload")
				assert.Contains(t, buf.String(), "disk gone")
			}
		})
	}
}

func TestDeferRollback_NilTx(t *testing.T) {
	var buf bytes.Buffer
	DeferRollback(zerolog.New(&buf), nil)
	assert.Zero(t, buf.Len())
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil, "wire server") })
	assert.PanicsWithValue(t, "wire server: boom", func() {
		Must(stderrors.New("boom"), "wire server")
	})
}
