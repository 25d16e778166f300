// Package invalidation defines the publish events that tell the WMS front
// end a backend target's layer definitions have changed.
package invalidation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	OpPublish   = "publish"
	OpUnpublish = "unpublish"
	OpRepublish = "republish"
)

type Event struct {
	Version int    `json:"version"`
	Op      string `json:"op"`
	// Target is the published target path, e.g. "/merc".
	Target string `json:"target"`
	// Server limits the invalidation to one backend; empty means all.
	Server string    `json:"server,omitempty"`
	TS     time.Time `json:"ts"`
	Source string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpPublish, OpUnpublish, OpRepublish:
	default:
		return fmt.Errorf("op must be publish|unpublish|republish")
	}
	if strings.Trim(strings.TrimSpace(e.Target), "/") == "" {
		return fmt.Errorf("target is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Server != "" {
		u, err := url.Parse(e.Server)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server must be an absolute http(s) URL")
		}
	}
	return nil
}

// Decode parses and validates one event payload.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}
	return ev, nil
}
