package week

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mode selects whose timezone defines week boundaries.
type Mode string

const (
	// ModeAthlete computes each athlete's week in their own zone.
	ModeAthlete Mode = "athlete"
	// ModeServer computes every week in the server zone.
	ModeServer Mode = "server"
)

// ParseMode parses a timezone mode name. Empty defaults to ModeAthlete.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAthlete:
		return ModeAthlete, nil
	case ModeServer:
		return ModeServer, nil
	default:
		return "", fmt.Errorf("unknown timezone mode %q", s)
	}
}

var zoneCache sync.Map // descriptor -> *time.Location

// ParseZone extracts an IANA zone from a provider descriptor such as
// "(GMT-08:00) America/Los_Angeles". The trailing token is used, so plain
// zone names parse as well.
func ParseZone(descriptor string) (*time.Location, bool) {
	fields := strings.Fields(descriptor)
	if len(fields) == 0 {
		return nil, false
	}
	name := fields[len(fields)-1]
	if name == "Local" {
		return nil, false
	}

	if cached, ok := zoneCache.Load(name); ok {
		return cached.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	zoneCache.Store(name, loc)
	return loc, true
}

// Source records which step of the fallback chain produced a bucket.
type Source string

const (
	SourceAthlete Source = "athlete"
	SourceServer  Source = "server"
	SourceLocal   Source = "start_date_local"
)

// Bucket is the timestamp an activity is bucketed by and the location its
// week window must be computed in.
type Bucket struct {
	At       time.Time
	Location *time.Location
	Source   Source
}

// Resolver applies the fallback chain athlete zone, server zone, then the
// activity's raw local start time.
type Resolver struct {
	Mode   Mode
	Server *time.Location // nil when no server zone is configured
}

// Bucket resolves the bucketing timestamp for an activity. startLocal is a
// wall-clock time whose location is ignored. It returns false when neither
// timestamp is usable.
func (r Resolver) Bucket(startUTC, startLocal time.Time, descriptor string) (Bucket, bool) {
	if !startUTC.IsZero() {
		if r.Mode != ModeServer {
			if loc, ok := ParseZone(descriptor); ok {
				return Bucket{At: startUTC.In(loc), Location: loc, Source: SourceAthlete}, true
			}
		}
		if r.Server != nil {
			return Bucket{At: startUTC.In(r.Server), Location: r.Server, Source: SourceServer}, true
		}
	}

	if startLocal.IsZero() {
		return Bucket{}, false
	}
	y, m, d := startLocal.Date()
	hh, mm, ss := startLocal.Clock()
	wall := time.Date(y, m, d, hh, mm, ss, startLocal.Nanosecond(), time.UTC)
	return Bucket{At: wall, Location: time.UTC, Source: SourceLocal}, true
}

// DisplayLocation is the location used for labels shared by all athletes.
func (r Resolver) DisplayLocation() *time.Location {
	if r.Server != nil {
		return r.Server
	}
	return time.UTC
}
