package announce

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Xerpa/gorpo/agent"
)

const (
	// minTick is the floor for the heartbeat interval.
	minTick = 50 * time.Millisecond

	// noCheckTick is the tick interval for services without a check. The
	// loop still runs to retry a failed registration, just rarely; once
	// registered, such a service makes no further agent calls per tick.
	noCheckTick = 300_000 * time.Millisecond

	// maxWait caps the backoff after consecutive failures.
	maxWait = 300_000 * time.Millisecond
)

// parseTTLMillis parses a duration string of the form "<int>[h|m|s]" into
// milliseconds. A bare integer is taken as milliseconds.
func parseTTLMillis(ttl string) (int64, error) {
	i := 0
	for i < len(ttl) && ttl[i] >= '0' && ttl[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("announce: invalid ttl %q", ttl)
	}

	value, err := strconv.ParseInt(ttl[:i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("announce: invalid ttl %q: %w", ttl, err)
	}

	var multiplier int64
	switch strings.TrimSpace(ttl[i:]) {
	case "h":
		multiplier = 3_600_000
	case "m":
		multiplier = 60_000
	case "s":
		multiplier = 1_000
	case "":
		multiplier = 1
	default:
		return 0, fmt.Errorf("announce: invalid ttl %q", ttl)
	}
	return value * multiplier, nil
}

// baseTick derives the steady-state heartbeat interval for a service:
// a fifth of the check TTL, never below minTick. Services without a check
// tick at noCheckTick.
func baseTick(svc agent.Service) (time.Duration, error) {
	if svc.Check == nil {
		return noCheckTick, nil
	}

	ttl := svc.Check.TTL
	if ttl == "" {
		ttl = agent.DefaultCheckTTL
	}

	ms, err := parseTTLMillis(ttl)
	if err != nil {
		return 0, err
	}

	tick := time.Duration(ms/5) * time.Millisecond
	if tick < minTick {
		tick = minTick
	}
	return tick, nil
}
