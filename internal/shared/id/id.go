// Package id provides identifier generation for windows and sessions.
//
// Window handles get prefixed ULIDs (win_*), which sort by creation time and
// read well in logs. Bridge tokens are bare ULIDs. Session ids are normally
// chosen by the opener; when a create request leaves the id empty the host
// falls back to a uuid v4, the same format renderers generate themselves.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// WindowID identifies a live window handle (transport identity)
type WindowID string

// SessionID identifies a session (one editable value)
type SessionID string

// Token authenticates a renderer attaching to its window handle
type Token string

const (
	WindowPrefix  = "win"
	PrimaryPrefix = "main"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic ids.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewWindowID generates a window handle id
func NewWindowID() WindowID {
	return WindowID(Default().GenerateWithPrefix(WindowPrefix))
}

// NewPrimaryID generates the primary window's handle id
func NewPrimaryID() WindowID {
	return WindowID(Default().GenerateWithPrefix(PrimaryPrefix))
}

// NewToken generates a bridge attach token
func NewToken() Token {
	return Token(Default().Generate().String())
}

// NewSessionID generates a host-side session id
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (id WindowID) String() string  { return string(id) }
func (id SessionID) String() string { return string(id) }
func (t Token) String() string      { return string(t) }

// IsPrimary reports whether a window id was minted by NewPrimaryID
func (id WindowID) IsPrimary() bool {
	return strings.HasPrefix(string(id), PrimaryPrefix+"_")
}

// IsValid checks if a string is a valid ULID
func IsValid(s string) bool {
	_, err := ulid.Parse(s)
	return err == nil
}

// Timestamp extracts the creation time from a prefixed or bare ULID
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
