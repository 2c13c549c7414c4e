// Package ulid generates prefixed ULIDs for diffjury entities.
//
// ULIDs are lexicographically sortable by time, which keeps the analysis
// history naturally ordered in the database without an extra sort column.
package ulid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Common prefixes for different parts of the application
const (
	// Prefix for analysis run ULIDs
	PrefixRun = "run"

	// Prefix for per-file verdict ULIDs
	PrefixVerdict = "fv"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// Generate creates a new ULID string with the current timestamp.
func Generate() string {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyLock.Unlock()
	return id.String()
}

// GenerateWithPrefix creates a new ULID string with the given prefix,
// e.g. "run-01AN4Z07BY79KA1307SR9X4MV3".
func GenerateWithPrefix(prefix string) string {
	return prefix + PrefixSeparator + Generate()
}

// RunID generates an ID for an analysis run
func RunID() string {
	return GenerateWithPrefix(PrefixRun)
}

// VerdictID generates an ID for a per-file verdict row
func VerdictID() string {
	return GenerateWithPrefix(PrefixVerdict)
}

// Parse validates a possibly-prefixed ULID string and returns its prefix and
// raw ULID. An empty prefix is returned for unprefixed IDs.
func Parse(id string) (prefix string, raw ulid.ULID, err error) {
	rawID := id
	if i := strings.Index(id, PrefixSeparator); i >= 0 {
		prefix = id[:i]
		rawID = id[i+1:]
	}

	raw, err = ulid.Parse(rawID)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("parsing ULID %q: %w", id, err)
	}

	return prefix, raw, nil
}

// Time extracts the timestamp embedded in a possibly-prefixed ULID.
func Time(id string) (time.Time, error) {
	_, raw, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(raw.Time()), nil
}
