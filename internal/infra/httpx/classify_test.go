package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyStatusErrors(t *testing.T) {
	tests := []struct {
		code     int
		wantKind string
	}{
		{401, entity.ErrKindBlocked},
		{403, entity.ErrKindBlocked},
		{404, entity.ErrKindNotFound},
		{418, entity.ErrKindHTTP4xx},
		{500, entity.ErrKindHTTP5xx},
		{503, entity.ErrKindHTTP5xx},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			kind, code, msg := Classify(&StatusError{Code: tt.code, URL: "https://example.com/feed"})
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestClassifyTransportErrors(t *testing.T) {
	kind, _, _ := Classify(timeoutErr{})
	assert.Equal(t, entity.ErrKindTimeout, kind)

	kind, _, _ = Classify(&url.Error{Op: "Get", URL: "https://example.com", Err: errors.New("connection refused")})
	assert.Equal(t, entity.ErrKindNetwork, kind)

	kind, _, _ = Classify(context.DeadlineExceeded)
	assert.Equal(t, entity.ErrKindTimeout, kind)

	kind, _, _ = Classify(ErrParseEmpty)
	assert.Equal(t, entity.ErrKindParseEmpty, kind)

	kind, _, _ = Classify(entity.ErrAuthExpired)
	assert.Equal(t, entity.ErrKindAuthExpired, kind)
}

func TestClassifyMessageHeuristics(t *testing.T) {
	tests := []struct {
		message  string
		wantKind string
	}{
		{"request timed out after 15s", entity.ErrKindTimeout},
		{"server said 403 Forbidden", entity.ErrKindBlocked},
		{"feed not found", entity.ErrKindNotFound},
		{"", entity.ErrKindUnknown},
		{"something odd", entity.ErrKindUnknown},
		{"no articles parsed from body", entity.ErrKindParseEmpty},
	}
	for _, tt := range tests {
		kind, _, _ := ClassifyMessage(tt.message)
		assert.Equal(t, tt.wantKind, kind, "message %q", tt.message)
	}
}
