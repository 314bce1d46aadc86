package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the root logger. cmd/raftd builds it once, in Init, and
	// passes it (or a WithComponent/WithNodeID child of it) to every
	// collaborator it constructs — pkg/raft.Engine, pkg/transport,
	// pkg/adminapi.Service all hold their own zerolog.Logger field seeded
	// from this value rather than reaching back into this package.
	Logger zerolog.Logger
)

// Level is one of the four severities raftd accepts on --log-level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls Init.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init sets the global zerolog level and builds Logger. JSONOutput selects
// line-delimited JSON (production, log-shipping friendly) over zerolog's
// console writer (readable in a terminal during development).
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent tags a child logger with the subsystem it belongs to
// ("raft", "transport", "adminapi", "storage"). Every long-lived logger in
// this tree is built this way once, at construction time, rather than
// re-derived on every log line.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNodeID tags a child logger with the server id of the Engine it
// belongs to, so lines from a multi-node deployment or test cluster can be
// told apart in a shared log stream.
func WithNodeID(nodeID string) zerolog.Logger {
	return Logger.With().Str("node_id", nodeID).Logger()
}

// WithTerm tags a logger with the current Raft term, for election/tick log
// lines that would otherwise just read "became candidate" with no
// indication of which term that was.
func WithTerm(term uint64) zerolog.Logger {
	return Logger.With().Uint64("term", term).Logger()
}

// WithRole tags a logger with the engine's current role (follower,
// candidate, leader).
func WithRole(role string) zerolog.Logger {
	return Logger.With().Str("role", role).Logger()
}

// WithIndex tags a logger with a log index, for replication/apply/snapshot
// lines keyed on a specific entry rather than the engine as a whole.
func WithIndex(index uint64) zerolog.Logger {
	return Logger.With().Uint64("index", index).Logger()
}
