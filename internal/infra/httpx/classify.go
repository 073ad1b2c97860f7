package httpx

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// ErrParseEmpty marks a reachable source that yielded no parseable articles.
var ErrParseEmpty = errors.New("source reachable but no articles parsed")

// Classify maps a transport or parse error onto the error-kind taxonomy.
// It returns the kind, the HTTP status code when one applies (else 0), and a
// human-readable message. Raw errors never travel past this boundary.
func Classify(err error) (kind string, httpCode int, message string) {
	if err == nil {
		return entity.ErrKindUnknown, 0, ""
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.Code
		switch {
		case code == 401 || code == 403:
			return entity.ErrKindBlocked, code, err.Error()
		case code == 404:
			return entity.ErrKindNotFound, code, err.Error()
		case code >= 400 && code < 500:
			return entity.ErrKindHTTP4xx, code, err.Error()
		case code >= 500 && code < 600:
			return entity.ErrKindHTTP5xx, code, err.Error()
		}
		return entity.ErrKindUnknown, code, err.Error()
	}

	if errors.Is(err, ErrParseEmpty) {
		return entity.ErrKindParseEmpty, 0, err.Error()
	}
	if errors.Is(err, entity.ErrAuthExpired) {
		return entity.ErrKindAuthExpired, 0, err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.ErrKindTimeout, 0, err.Error()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return entity.ErrKindTimeout, 0, err.Error()
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return entity.ErrKindTimeout, 0, err.Error()
		}
		return entity.ErrKindNetwork, 0, err.Error()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return entity.ErrKindNetwork, 0, err.Error()
	}

	return ClassifyMessage(err.Error())
}

// ClassifyMessage applies message heuristics when no typed error is
// available, e.g. failure text replayed from a stored attempt.
func ClassifyMessage(message string) (kind string, httpCode int, out string) {
	text := strings.TrimSpace(message)
	if text == "" {
		return entity.ErrKindUnknown, 0, "unknown error"
	}
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "timeout") || strings.Contains(lowered, "timed out"):
		return entity.ErrKindTimeout, 0, text
	case strings.Contains(lowered, "403") || strings.Contains(lowered, "forbidden"):
		return entity.ErrKindBlocked, 403, text
	case strings.Contains(lowered, "404") || strings.Contains(lowered, "not found"):
		return entity.ErrKindNotFound, 404, text
	case strings.Contains(lowered, "http 5"):
		return entity.ErrKindHTTP5xx, 0, text
	case strings.Contains(lowered, "auth_expired") || strings.Contains(lowered, "session"):
		return entity.ErrKindAuthExpired, 0, text
	case strings.Contains(lowered, "parse") || strings.Contains(lowered, "no articles"):
		return entity.ErrKindParseEmpty, 0, text
	case strings.Contains(lowered, "connection") || strings.Contains(lowered, "no such host"):
		return entity.ErrKindNetwork, 0, text
	}
	return entity.ErrKindUnknown, 0, text
}
