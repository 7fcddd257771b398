package hostlookup

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/miekg/dns"
)

var ErrNoAnswer = errors.New("hostlookup: no answer")
var ErrChaseLimit = errors.New("hostlookup: cname/referral chain too deep")
var ErrTooManyQueries = errors.New("hostlookup: too many queries, possible loop")

type chaseLimitError struct {
	limit int
}

func (e chaseLimitError) Error() string {
	return "hostlookup: cname/referral chain too deep (> " + strconv.Itoa(e.limit) + ")"
}

func (e chaseLimitError) Is(target error) bool {
	return target == ErrChaseLimit
}

func (e chaseLimitError) Unwrap() error {
	return ErrChaseLimit
}

// AttemptKind classifies the outcome of one candidate server exchange.
type AttemptKind int

const (
	AttemptAnswered AttemptKind = iota
	AttemptTimeout
	AttemptUnreachable
	AttemptMalformed
	AttemptFailed
)

func (k AttemptKind) String() string {
	switch k {
	case AttemptAnswered:
		return "answered"
	case AttemptTimeout:
		return "timeout"
	case AttemptUnreachable:
		return "unreachable"
	case AttemptMalformed:
		return "malformed"
	}
	return "failed"
}

// Attempt records one candidate server exchange for diagnostics.
// Failed attempts are recorded here and never propagated as errors.
type Attempt struct {
	Server netip.Addr
	Kind   AttemptKind
	RTT    time.Duration
	Err    error
}

// NoAnswerError reports that every candidate was exhausted without a
// matching record, referral or glue path. Trail holds the exchanges
// made along the way so callers can tell timeouts from dead ends.
type NoAnswerError struct {
	Name  string
	Qtype uint16
	Trail []Attempt
}

func (e *NoAnswerError) Error() string {
	return "hostlookup: no answer for " + dns.Type(e.Qtype).String() + " " + e.Name
}

func (e *NoAnswerError) Is(target error) bool {
	return target == ErrNoAnswer
}

func (e *NoAnswerError) Unwrap() error {
	return ErrNoAnswer
}

// classifyAttempt maps an exchange outcome to an AttemptKind using the
// well-known error families from the net, os, io and context packages.
func classifyAttempt(err error, resp *dns.Msg) AttemptKind {
	if err == nil && resp != nil {
		return AttemptAnswered
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return AttemptTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return AttemptTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return AttemptUnreachable
	}
	if errors.Is(err, dns.ErrShortRead) || errors.Is(err, io.ErrUnexpectedEOF) {
		return AttemptMalformed
	}
	var dnsErr *dns.Error
	if errors.As(err, &dnsErr) {
		return AttemptMalformed
	}
	return AttemptFailed
}
