package settings

import (
	"math"
	"time"

	"botherd/internal/config"
	"botherd/internal/instances"
)

// Kind discriminates the two document shapes.
type Kind int

const (
	// KindSingle is a document describing exactly one instance.
	KindSingle Kind = iota
	// KindMulti is a document listing instances under "Instances".
	KindMulti
)

// String returns a log-friendly name.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single-instance"
	case KindMulti:
		return "multi-instance"
	default:
		return "unknown"
	}
}

// MainAlias is the implicit alias of a single-instance document.
const MainAlias = "MAIN"

// Descriptor is one valid entry of the Instances array.
type Descriptor struct {
	// Settings is the path as written, relative to the document directory.
	Settings string
	Alias    string
	// Index is the entry position in the Instances array.
	Index int
}

// MaxPingHours is the largest EveryHours that still fits a time.Duration.
const MaxPingHours = int64(math.MaxInt64 / int64(time.Hour))

// AutoPing is the TelegramMessenger.TelegramAutoPing block.
type AutoPing struct {
	Active     bool
	EveryHours int64
}

// MessengerSettings is the TelegramMessenger block.
type MessengerSettings struct {
	Active   bool
	API      string
	ChatID   string
	AutoPing AutoPing
}

// SameCredentials reports whether both settings talk to the same bot and chat.
func (m MessengerSettings) SameCredentials(other MessengerSettings) bool {
	return m.API == other.API && m.ChatID == other.ChatID
}

// Target is a resolved instance the document asks for.
type Target struct {
	Identity instances.Identity
	Alias    string
}

// Document is a parsed settings document.
type Document struct {
	// Path is the absolute path of the document.
	Path string
	Kind Kind

	// Instances holds the valid descriptors of a multi-instance document in
	// document order. Malformed entries are left out and reported in Malformed.
	Instances []Descriptor

	Messenger MessengerSettings

	// Malformed collects every skipped entry and every optional field that
	// had the wrong type.
	Malformed *config.ConfigurationErrorCollection

	raw map[string]interface{}
}
