package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
)

// ErrRemoteUnavailable marks a transient failure talking to the remote
// account: connection refused, timeout, or rejected credentials. The
// gateway never retries; whether to retry, roll back or queue is the
// caller's decision.
var ErrRemoteUnavailable = errors.New("remote calendar unavailable")

// ErrRemoteProtocol marks a remote response that violates the expected
// CalDAV/iCalendar shape. Retrying cannot fix a protocol mismatch, so this
// is never retried and never swallowed.
var ErrRemoteProtocol = errors.New("remote calendar protocol error")

// The DAV client reports non-2xx responses as plain errors whose message
// starts with the status code ("401 Unauthorized").
var statusRe = regexp.MustCompile(`(?:^|: )([1-5][0-9]{2}) `)

func statusFromError(err error) (int, bool) {
	m := statusRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	code, convErr := strconv.Atoi(m[1])
	return code, convErr == nil
}

// classify maps a raw client error onto the gateway taxonomy. Transport
// faults, timeouts, auth rejections and server-side 5xx become
// ErrRemoteUnavailable; any other malformed or unexpected response is
// ErrRemoteProtocol.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, op, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, op, err)
	}
	if code, ok := statusFromError(err); ok {
		if code == 401 || code == 403 || code >= 500 {
			return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrRemoteProtocol, op, err)
}
