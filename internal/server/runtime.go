package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/noodles-scene/noodles-server/internal/byteserver"
	"github.com/noodles-scene/noodles-server/internal/core/broadcast"
	"github.com/noodles-scene/noodles-server/internal/core/dispatch"
	"github.com/noodles-scene/noodles-server/internal/core/ids"
	"github.com/noodles-scene/noodles-server/internal/core/observability/log"
	"github.com/noodles-scene/noodles-server/internal/core/scene"
	"github.com/noodles-scene/noodles-server/internal/core/session"
	"github.com/noodles-scene/noodles-server/internal/core/wire"
	"github.com/noodles-scene/noodles-server/pkg/concurrent"
	"github.com/noodles-scene/noodles-server/pkg/sequence"
)

// sessionEntry is a connected session plus the means to tear it down
// from the core loop.
type sessionEntry struct {
	sess   *session.Session
	cancel context.CancelFunc
}

// Runtime is the running server: the authoritative scene registry, the
// broadcast fan-out engine, the method dispatcher, and the set of
// connected sessions, all driven by a single core-loop goroutine per
// spec §5. Every exported method below except Run and Shutdown is meant
// to be called from a dispatch.Handler running on that loop; calling
// them from any other goroutine races the registry.
type Runtime struct {
	cfg    Config
	logger log.Log

	registry   *scene.Registry
	hub        *broadcast.Hub
	dispatcher *dispatch.Dispatcher
	byteServer *byteserver.Server

	sessions map[uuid.UUID]*sessionEntry
	connCh   chan *websocket.Conn
	inbound  chan session.Inbound

	transport *transport
	shutdown  bool
	currentCtx context.Context
}

// New builds a Runtime and applies cfg's starting state. The listener
// is not started until Run is called.
func New(cfg Config) (*Runtime, error) {
	if cfg.Port == 0 {
		return nil, fmt.Errorf("%w: port must be non-zero", ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.LevelInfo)
	}
	if cfg.Delegates == nil {
		cfg.Delegates = make(map[ids.Kind]DelegateFactory)
	}

	rt := &Runtime{
		cfg:        cfg,
		logger:     cfg.Logger,
		registry:   scene.NewRegistry(),
		hub:        broadcast.NewHub(cfg.QueueCapacity),
		dispatcher: dispatch.NewDispatcher(),
		sessions:   make(map[uuid.UUID]*sessionEntry),
		connCh:     make(chan *websocket.Conn),
		inbound:    make(chan session.Inbound, cfg.InboundQueueCapacity),
		currentCtx: context.Background(),
	}

	if cfg.ByteServerAddr != "" {
		rt.byteServer = byteserver.New(cfg.ByteServerAddr, rt.logger)
	}

	if err := rt.applyStartingState(cfg.StartingState); err != nil {
		return nil, fmt.Errorf("server: apply starting state: %w", err)
	}

	if cfg.JSONDumpPath != "" {
		if err := rt.dumpSnapshot(cfg.JSONDumpPath); err != nil {
			return nil, fmt.Errorf("server: dump starting snapshot: %w", err)
		}
	}

	return rt, nil
}

// applyStartingState allocates and creates every configured component
// in order, wiring its delegate and (for methods) its handler, exactly
// as CreateComponent would once the server is running. A failure here
// means the configuration itself is invalid (dangling reference, bad
// field, unknown kind), per [EXPANSION] EXP-4.
func (rt *Runtime) applyStartingState(entries []StartingComponent) error {
	for i, entry := range entries {
		if !entry.Kind.Valid() {
			return fmt.Errorf("starting state[%d]: invalid kind %v", i, entry.Kind)
		}
		id := rt.registry.Alloc(entry.Kind)
		comp, err := entry.Build(id)
		if err != nil {
			return fmt.Errorf("starting state[%d] (%v): build: %w", i, entry.Kind, err)
		}
		delegate := rt.delegateFor(entry.Kind, id)
		if err := rt.registry.Create(rt.currentCtx, comp, delegate); err != nil {
			return fmt.Errorf("starting state[%d] (%v): %w", i, entry.Kind, err)
		}
		if entry.Handler != nil {
			rt.dispatcher.Register(id, entry.Handler)
		}
	}
	return nil
}

func (rt *Runtime) delegateFor(kind ids.Kind, id ids.ID) scene.Delegate {
	if factory, ok := rt.cfg.Delegates[kind]; ok {
		return factory(id)
	}
	if kind == ids.KindTable {
		return scene.NewInMemoryTableDelegate(nil)
	}
	return scene.NopDelegate{}
}

// Run starts the websocket and (if configured) byte-server listeners
// and drives the core loop until ctx is cancelled or a handler calls
// Shutdown. It returns once every session has been torn down.
func (rt *Runtime) Run(ctx context.Context) error {
	tr, err := newTransport(rt)
	if err != nil {
		return fmt.Errorf("server: start transport: %w", err)
	}
	rt.transport = tr

	if rt.byteServer != nil {
		if err := rt.byteServer.Start(ctx); err != nil {
			return fmt.Errorf("server: start byte server: %w", err)
		}
	}

	rt.logger.Info("server started", log.Int("port", int(rt.cfg.Port)))

	for {
		select {
		case <-ctx.Done():
			return rt.drainAndClose()
		case conn := <-rt.connCh:
			rt.acceptSession(ctx, conn)
		case msg := <-rt.inbound:
			rt.currentCtx = ctx
			rt.processInbound(msg)
			if rt.shutdown {
				return rt.drainAndClose()
			}
		}
	}
}

// Shutdown requests that the core loop stop after finishing whatever it
// is currently doing. It is safe to call from within a dispatch.Handler
// running on the core loop, which is the expected [SIG-SHUTDOWN] use.
func (rt *Runtime) Shutdown(context.Context) error {
	rt.shutdown = true
	if rt.transport != nil {
		rt.transport.stopAccepting()
	}
	return nil
}

func (rt *Runtime) drainAndClose() error {
	deadline := time.Now().Add(rt.cfg.ShutdownDrainTimeout)
	for time.Now().Before(deadline) && rt.anyQueueNonEmpty() {
		time.Sleep(10 * time.Millisecond)
	}

	for id, entry := range rt.sessions {
		entry.sess.Close()
		entry.cancel()
		rt.hub.Unregister(id)
	}
	rt.sessions = make(map[uuid.UUID]*sessionEntry)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownDrainTimeout)
	defer cancel()

	closers := make([]func() error, 0, 2)
	if rt.byteServer != nil {
		closers = append(closers, func() error { return rt.byteServer.Stop(shutdownCtx) })
	}
	if rt.transport != nil {
		closers = append(closers, func() error { return rt.transport.close(shutdownCtx) })
	}
	concurrent.ParallelMute(sequence.From(closers), func(close func() error) error { return close() })

	rt.logger.Info("server stopped")
	return nil
}

func (rt *Runtime) anyQueueNonEmpty() bool {
	for id := range rt.sessions {
		if rt.hub.QueueLen(id) > 0 {
			return true
		}
	}
	return false
}

func (rt *Runtime) acceptSession(ctx context.Context, conn *websocket.Conn) {
	id := uuid.New()
	outbox := rt.hub.Register(id)
	sessCtx, cancel := context.WithCancel(ctx)
	sess := session.New(conn, outbox, rt.inbound)
	rt.sessions[id] = &sessionEntry{sess: sess, cancel: cancel}

	rt.logger.Debug("session accepted", log.String("session", id.String()))
	go func() {
		if err := sess.Run(sessCtx); err != nil {
			rt.logger.Debug("session closed", log.String("session", id.String()), log.Error(err))
		}
	}()
}

func (rt *Runtime) processInbound(msg session.Inbound) {
	entry, ok := rt.sessions[msg.SessionID]
	if !ok {
		return
	}
	if msg.Err != nil {
		rt.teardownSession(msg.SessionID)
		return
	}

	for _, el := range msg.Elements {
		if err := rt.handleElement(entry, el); err != nil {
			rt.logger.Warn("closing session on protocol error",
				log.String("session", msg.SessionID.String()), log.Error(err))
			rt.teardownSession(msg.SessionID)
			return
		}
	}
}

func (rt *Runtime) teardownSession(id uuid.UUID) {
	entry, ok := rt.sessions[id]
	if !ok {
		return
	}
	entry.sess.Close()
	entry.cancel()
	rt.hub.Unregister(id)
	delete(rt.sessions, id)
}

func (rt *Runtime) handleElement(entry *sessionEntry, el wire.RawElement) error {
	switch entry.sess.State {
	case session.Accepted:
		if el.Tag != uint64(wire.TagIntroMessage) {
			return fmt.Errorf("%w: expected IntroMessage in Accepted state, got tag %d", wire.ErrUnknownTag, el.Tag)
		}
		var intro wire.IntroMessage
		if err := el.Unmarshal(&intro); err != nil {
			return err
		}
		if err := entry.sess.Introduce(intro.ClientName); err != nil {
			return err
		}
		if err := rt.sendInitSnapshot(entry.sess.ID); err != nil {
			return err
		}
		return entry.sess.Activate()

	case session.Active:
		if el.Tag != uint64(wire.TagInvokeMethod) {
			return fmt.Errorf("%w: unexpected tag %d in Active state", wire.ErrUnknownTag, el.Tag)
		}
		return rt.handleInvoke(entry, el)

	default:
		return fmt.Errorf("frame received while session is %s", entry.sess.State)
	}
}

// sendInitSnapshot enqueues every live component (in Snapshot's
// dependency order, each as its kind's Create message) followed by a
// DocumentUpdate of the global methods/signals list and an InitDone
// marker, matching rigatoni's introduction sequence.
func (rt *Runtime) sendInitSnapshot(id uuid.UUID) error {
	global := func(kind ids.Kind) []ids.ID {
		var out []ids.ID
		for _, id := range rt.registry.IDsByKind(kind) {
			if !rt.registry.IsReferenced(id) {
				out = append(out, id)
			}
		}
		return out
	}

	frame := wire.Frame{}
	for _, c := range rt.registry.Snapshot() {
		tags, ok := tagsByKind[c.Kind()]
		if !ok {
			continue
		}
		payload, err := scene.WirePayload(c)
		if err != nil {
			return fmt.Errorf("build snapshot payload for %v: %w", c.ComponentID(), err)
		}
		frame = append(frame, wire.Element{Tag: uint64(tags.create), Payload: payload})
	}
	frame = append(frame,
		wire.Element{Tag: uint64(wire.TagDocumentUpdate), Payload: wire.DocumentUpdate{
			MethodsList: global(ids.KindMethod),
			SignalsList: global(ids.KindSignal),
		}},
		wire.Element{Tag: uint64(wire.TagInitDone), Payload: wire.Empty{}},
	)

	ok, err := rt.hub.SendTo(id, frame)
	if err != nil {
		return fmt.Errorf("send init snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("init snapshot dropped: outbox unavailable or full")
	}
	return nil
}

func (rt *Runtime) handleInvoke(entry *sessionEntry, el wire.RawElement) error {
	var raw wire.RawInvokeMethod
	if err := el.Unmarshal(&raw); err != nil {
		return err
	}

	methodID := ids.ID{Kind: ids.KindMethod, Slot: raw.Method[0], Generation: raw.Method[1]}
	call := rawContextToCall(raw.Context)

	var result any
	exc := rt.checkMethodTarget(methodID, call)
	if exc == nil {
		result, exc = rt.dispatcher.Dispatch(rt.currentCtx, methodID, call, raw.Args)
	}
	reply := wire.MethodReply{InvokeID: raw.InvokeID, Result: result, MethodException: exc}
	frame := wire.Frame{{Tag: uint64(wire.TagMethodReply), Payload: reply}}

	ok, err := rt.hub.SendTo(entry.sess.ID, frame)
	if err != nil {
		return fmt.Errorf("send method reply: %w", err)
	}
	if !ok {
		rt.logger.Warn("method reply dropped: outbox full", log.String("invoke_id", raw.InvokeID))
	}
	return nil
}

// checkMethodTarget implements dispatch rule §4.F.2: methodID must be
// alive, and the call's context must resolve to a live entity/table/plot
// that actually lists methodID — or, for a global call (no context), the
// method must not be attached to any specific component at all. A stale
// or unattached target never reaches the handler; it is rejected here
// with the same exception Dispatch itself uses for an unregistered
// method.
func (rt *Runtime) checkMethodTarget(methodID ids.ID, call dispatch.Context) *wire.MethodException {
	if _, ok := rt.registry.Get(methodID); !ok {
		return &wire.MethodException{
			Code:    int(dispatch.CodeMethodNotFound),
			Message: fmt.Sprintf("no such method %v", methodID),
		}
	}

	target := call.Entity
	if target == nil {
		target = call.Table
	}
	if target == nil {
		target = call.Plot
	}

	if target == nil {
		if rt.registry.IsReferenced(methodID) {
			return &wire.MethodException{
				Code:    int(dispatch.CodeMethodNotFound),
				Message: fmt.Sprintf("method %v is not a global method", methodID),
			}
		}
		return nil
	}

	comp, ok := rt.registry.Get(*target)
	if !ok {
		return &wire.MethodException{
			Code:    int(dispatch.CodeMethodNotFound),
			Message: fmt.Sprintf("call target %v is not alive", *target),
		}
	}
	if !containsID(methodsListOf(comp), methodID) {
		return &wire.MethodException{
			Code:    int(dispatch.CodeMethodNotFound),
			Message: fmt.Sprintf("method %v is not attached to %v", methodID, *target),
		}
	}
	return nil
}

// methodsListOf returns c's methods_list, for every kind that carries
// one; any other kind (or a nil context target resolving to the wrong
// kind) has none.
func methodsListOf(c scene.Component) []ids.ID {
	switch v := c.(type) {
	case *scene.Entity:
		return v.MethodsList
	case *scene.Table:
		return v.MethodsList
	case *scene.Plot:
		return v.MethodsList
	default:
		return nil
	}
}

func containsID(list []ids.ID, id ids.ID) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

func rawContextToCall(raw *wire.RawInvokeContext) dispatch.Context {
	var call dispatch.Context
	if raw == nil {
		return call
	}
	switch {
	case raw.Entity != nil:
		id := ids.ID{Kind: ids.KindEntity, Slot: raw.Entity[0], Generation: raw.Entity[1]}
		call.Entity = &id
	case raw.Table != nil:
		id := ids.ID{Kind: ids.KindTable, Slot: raw.Table[0], Generation: raw.Table[1]}
		call.Table = &id
	case raw.Plot != nil:
		id := ids.ID{Kind: ids.KindPlot, Slot: raw.Plot[0], Generation: raw.Plot[1]}
		call.Plot = &id
	}
	return call
}

// handleOverflow tears down every session broadcast reported as
// overflowed, matching spec §5's "drop the slow client, keep the room
// moving" fan-out policy.
func (rt *Runtime) handleOverflow(overflowed []uuid.UUID) {
	for _, id := range overflowed {
		rt.logger.Warn("session outbox overflow, disconnecting", log.String("session", id.String()))
		rt.teardownSession(id)
	}
}

// CreateComponent allocates an ID of kind, builds the component around
// it, admits it to the registry, attaches its delegate, and broadcasts
// the matching Create<Kind> message to every session. Call it only from
// a dispatch.Handler running on the core loop.
func (rt *Runtime) CreateComponent(kind ids.Kind, build func(id ids.ID) (scene.Component, error)) (ids.ID, error) {
	return rt.createComponent(kind, build, nil)
}

// createComponent is CreateComponent's implementation, taking an
// explicit delegate override: nil means "use the configured default for
// kind" (rt.delegateFor), which is what every caller except CreateTable
// wants — CreateTable already built its own delegate and must not have
// it silently replaced by the configured default.
func (rt *Runtime) createComponent(kind ids.Kind, build func(id ids.ID) (scene.Component, error), delegate scene.Delegate) (ids.ID, error) {
	if rt.shutdown {
		return ids.ID{}, ErrShuttingDown
	}
	if !kind.Valid() {
		return ids.ID{}, fmt.Errorf("scene: invalid kind %v", kind)
	}

	id := rt.registry.Alloc(kind)
	comp, err := build(id)
	if err != nil {
		return ids.ID{}, err
	}
	if delegate == nil {
		delegate = rt.delegateFor(kind, id)
	}
	if err := rt.registry.Create(rt.currentCtx, comp, delegate); err != nil {
		return ids.ID{}, err
	}

	tags := tagsByKind[kind]
	payload, err := scene.WirePayload(comp)
	if err != nil {
		return id, fmt.Errorf("build create payload for %v: %w", id, err)
	}
	overflowed, err := rt.hub.Broadcast(wire.Frame{{Tag: uint64(tags.create), Payload: payload}})
	if err != nil {
		return id, fmt.Errorf("broadcast create: %w", err)
	}
	rt.handleOverflow(overflowed)
	return id, nil
}

// UpdateComponent applies delta to id's live component and broadcasts
// the matching Update<Kind> message. It fails with ErrKindNotUpdatable
// for a kind that has no Update message on the wire (Method, Signal,
// Buffer, BufferView, Image, Texture, Sampler, Geometry).
func (rt *Runtime) UpdateComponent(id ids.ID, delta scene.Delta) error {
	if rt.shutdown {
		return ErrShuttingDown
	}
	tags, ok := tagsByKind[id.Kind]
	if !ok || !tags.hasUpdate {
		return fmt.Errorf("%w: %v", ErrKindNotUpdatable, id.Kind)
	}

	applied, err := rt.registry.Update(id, delta)
	if err != nil {
		return err
	}

	overflowed, err := rt.hub.Broadcast(wire.Frame{{Tag: uint64(tags.update), Payload: updatePayload(id, applied)}})
	if err != nil {
		return fmt.Errorf("broadcast update: %w", err)
	}
	rt.handleOverflow(overflowed)
	return nil
}

// DeleteComponent removes id from the registry and broadcasts the
// matching Delete<Kind> message. It fails with scene.ErrInUse if id is
// still referenced by another live component.
func (rt *Runtime) DeleteComponent(id ids.ID) error {
	if rt.shutdown {
		return ErrShuttingDown
	}
	tags, ok := tagsByKind[id.Kind]
	if !ok {
		return fmt.Errorf("scene: invalid kind %v", id.Kind)
	}
	if err := rt.registry.Delete(rt.currentCtx, id); err != nil {
		return err
	}

	overflowed, err := rt.hub.Broadcast(wire.Frame{{Tag: uint64(tags.delete), Payload: wire.DeleteRef{ID: id}}})
	if err != nil {
		return fmt.Errorf("broadcast delete: %w", err)
	}
	rt.handleOverflow(overflowed)
	return nil
}

// InvokeSignal broadcasts a SignalInvoke for id, targeted at call's
// entity/table/plot context (or the document if call is the zero
// value), carrying args as the signal's payload.
func (rt *Runtime) InvokeSignal(id ids.ID, call dispatch.Context, args []any) error {
	if id.Kind != ids.KindSignal {
		return fmt.Errorf("%w: %v is not a signal", ErrSignalNotFound, id)
	}
	if _, ok := rt.registry.Get(id); !ok {
		return fmt.Errorf("%w: %v", ErrSignalNotFound, id)
	}

	msg := wire.SignalInvoke{ID: id, Context: callToInvokeContext(call), Args: args}
	overflowed, err := rt.hub.Broadcast(wire.Frame{{Tag: uint64(wire.TagSignalInvoke), Payload: msg}})
	if err != nil {
		return fmt.Errorf("broadcast signal: %w", err)
	}
	rt.handleOverflow(overflowed)
	return nil
}

func callToInvokeContext(call dispatch.Context) *wire.InvokeContext {
	if call.Entity == nil && call.Table == nil && call.Plot == nil {
		return nil
	}
	return &wire.InvokeContext{Entity: call.Entity, Table: call.Table, Plot: call.Plot}
}

// GetComponent returns the live component named by id.
func (rt *Runtime) GetComponent(id ids.ID) (scene.Component, bool) {
	return rt.registry.Get(id)
}

// GetIDsByKind returns every live ID of kind, in creation order.
func (rt *Runtime) GetIDsByKind(kind ids.Kind) []ids.ID {
	return rt.registry.IDsByKind(kind)
}

// GetComponentIDByName resolves name within kind to its most recently
// created live component, per spec §3.2.
func (rt *Runtime) GetComponentIDByName(kind ids.Kind, name string) (ids.ID, bool) {
	return rt.registry.ComponentIDByName(kind, name)
}

// GetDelegate returns the delegate attached to id, if any.
func (rt *Runtime) GetDelegate(id ids.ID) (scene.Delegate, bool) {
	return rt.registry.Delegate(id)
}

// RegisterMethod attaches h as id's implementation, for a Method
// created outside of Config.StartingState (e.g. one an already-running
// handler creates dynamically).
func (rt *Runtime) RegisterMethod(id ids.ID, h dispatch.Handler) {
	rt.dispatcher.Register(id, h)
}

// dumpSnapshot writes the applied starting state to path as JSON, for
// inspecting what a Config actually produced without connecting a
// client. It is a debug aid, not part of the wire protocol.
func (rt *Runtime) dumpSnapshot(path string) error {
	snap := rt.registry.Snapshot()
	payloads := make([]map[string]any, 0, len(snap))
	for _, c := range snap {
		payload, err := scene.WirePayload(c)
		if err != nil {
			return fmt.Errorf("build dump payload for %v: %w", c.ComponentID(), err)
		}
		payloads = append(payloads, payload)
	}
	data, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
