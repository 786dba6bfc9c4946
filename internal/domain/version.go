package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VersionTag is the optimistic concurrency token for a board snapshot.
// It is computed by the store on every successful write, never by clients.
// Wire form is "<counter>-<unixmilli>"; the counter alone defines ordering,
// the timestamp is informational. The zero value "" carries no expectation
// and forces an unconditional write.
type VersionTag string

const NoVersion VersionTag = ""

func NewVersionTag(seq int64, at time.Time) VersionTag {
	return VersionTag(fmt.Sprintf("%d-%d", seq, at.UnixMilli()))
}

// Seq returns the counter component, or -1 for an empty or malformed tag.
func (v VersionTag) Seq() int64 {
	s := string(v)
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	seq, err := strconv.ParseInt(s, 10, 64)
	if err != nil || s == "" {
		return -1
	}
	return seq
}

func (v VersionTag) IsZero() bool {
	return v == NoVersion
}

// NewerThan reports whether v is strictly newer than other. An empty tag is
// never newer than anything; anything valid is newer than an empty tag.
func (v VersionTag) NewerThan(other VersionTag) bool {
	return v.Seq() > other.Seq()
}

// Next derives the successor tag: counter incremented, timestamp refreshed.
func (v VersionTag) Next(at time.Time) VersionTag {
	return NewVersionTag(v.Seq()+1, at)
}
