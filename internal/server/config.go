package server

import (
	"time"

	"github.com/noodles-scene/noodles-server/internal/core/dispatch"
	"github.com/noodles-scene/noodles-server/internal/core/ids"
	"github.com/noodles-scene/noodles-server/internal/core/observability/log"
	"github.com/noodles-scene/noodles-server/internal/core/scene"
)

// DelegateFactory builds the delegate attached to a freshly created
// component of one kind. Config.Delegates lets the embedding program
// override the built-in default (scene.NopDelegate, or for Table,
// scene.NewInMemoryTableDelegate) on a per-kind basis.
type DelegateFactory func(id ids.ID) scene.Delegate

// StartingComponent is one entry of a Config's starting state: a
// component kind, a builder that produces the component once the
// runtime has allocated its ID, and — for Method entries — the handler
// to register under that ID.
type StartingComponent struct {
	Kind    ids.Kind
	Build   func(id ids.ID) (scene.Component, error)
	Handler dispatch.Handler
}

// Config configures a Runtime. It is constructed directly by the
// embedding program; the only file support is FileConfig
// (config_file.go), a YAML overlay for the fields that have a file
// representation. No flag parsing lives in this package.
type Config struct {
	// Port is the websocket listen port.
	Port uint16

	// StartingState is applied, in order, before the listener accepts
	// any connection.
	StartingState []StartingComponent

	// Delegates overrides the default delegate for a component kind.
	// A kind with no entry gets scene.NopDelegate (or, for Table,
	// scene.NewInMemoryTableDelegate(nil)).
	Delegates map[ids.Kind]DelegateFactory

	// JSONDumpPath, if set, writes the startup snapshot to this path as
	// JSON once StartingState has been applied — a debug aid, off by
	// default.
	JSONDumpPath string

	// ByteServerAddr, if set, starts the auxiliary byte server (see
	// internal/byteserver) on this address alongside the websocket
	// listener.
	ByteServerAddr string

	// QueueCapacity bounds each session's outbound frame queue.
	QueueCapacity int

	// ShutdownDrainTimeout bounds how long Shutdown waits for outbound
	// queues to drain before forcing sessions closed.
	ShutdownDrainTimeout time.Duration

	// InboundQueueCapacity bounds the channel transport goroutines use
	// to forward decoded frames to the core loop.
	InboundQueueCapacity int

	Logger log.Log
}

// DefaultConfig returns a Config with no starting state, the built-in
// delegates, and conservative timeouts — the embedding program is
// expected to at least set Port and StartingState.
func DefaultConfig() Config {
	return Config{
		Port:                 50000,
		Delegates:            make(map[ids.Kind]DelegateFactory),
		QueueCapacity:        256,
		ShutdownDrainTimeout: 5 * time.Second,
		InboundQueueCapacity: 256,
		Logger:               log.New(log.LevelInfo),
	}
}
