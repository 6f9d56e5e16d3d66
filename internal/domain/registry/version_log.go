package registry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version references one archived artifact.
type Version struct {
	Key       string
	CreatedAt time.Time
}

// VersionLog is an ordered, append-only list of versions, oldest first. The
// only removal is Truncate, used by rollback.
type VersionLog struct {
	versions []Version
}

// NewVersionLog returns a log holding copies of versions.
func NewVersionLog(versions ...Version) *VersionLog {
	return &VersionLog{versions: append([]Version(nil), versions...)}
}

// Append adds v as the newest version.
func (l *VersionLog) Append(v Version) {
	l.versions = append(l.versions, v)
}

// Len returns the number of versions.
func (l *VersionLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.versions)
}

// At returns the version at index i.
func (l *VersionLog) At(i int) (Version, bool) {
	if i < 0 || i >= l.Len() {
		return Version{}, false
	}
	return l.versions[i], true
}

// Last returns the newest version.
func (l *VersionLog) Last() (Version, bool) {
	return l.At(l.Len() - 1)
}

// Truncate keeps the first n versions and drops the rest.
func (l *VersionLog) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(l.versions) {
		clear(l.versions[n:])
		l.versions = l.versions[:n]
	}
}

// Versions returns a copy of the log, oldest first.
func (l *VersionLog) Versions() []Version {
	if l == nil {
		return nil
	}
	return append([]Version(nil), l.versions...)
}

// Clone returns an independent copy.
func (l *VersionLog) Clone() *VersionLog {
	return NewVersionLog(l.Versions()...)
}

type versionRecord struct {
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
}

// MarshalJSON encodes the log as an array of {key, created_at} with unix
// millisecond timestamps.
func (l *VersionLog) MarshalJSON() ([]byte, error) {
	records := make([]versionRecord, 0, l.Len())
	for _, v := range l.Versions() {
		records = append(records, versionRecord{Key: v.Key, CreatedAt: v.CreatedAt.UnixMilli()})
	}
	return json.Marshal(records)
}

// UnmarshalJSON replaces the log with the decoded versions.
func (l *VersionLog) UnmarshalJSON(data []byte) error {
	var records []versionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode version log: %w", err)
	}
	l.versions = make([]Version, 0, len(records))
	for _, r := range records {
		l.versions = append(l.versions, Version{Key: r.Key, CreatedAt: time.UnixMilli(r.CreatedAt)})
	}
	return nil
}
