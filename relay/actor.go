package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// None is the payload type of a missing queue: the In of sources and the Out
// of sinks.
type None = struct{}

// Role is the position of an actor in a pipeline. It is fixed by
// Relay.Connect.
type Role uint8

const (
	// RoleUnset is the role of actors that are not connected yet.
	RoleUnset Role = iota
	// RoleSource actors only send. They must implement Looper.
	RoleSource
	// RoleStage actors receive and send.
	RoleStage
	// RoleSink actors only receive.
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleStage:
		return "stage"
	case RoleSink:
		return "sink"
	default:
		return "unset"
	}
}

// Actor is a unit of concurrent execution wired by a Relay.
//
// Implement an actor by embedding [Base] and adding the capabilities the
// actor needs: [Looper], [Receiver], [Starter] and [Stopper].
type Actor interface {
	// Name returns the actor name, unique within its group.
	Name() string

	base() wiring
}

// Looper is implemented by actors that drive their own lifetime. Actors of
// the first group have no inbound queue and must implement it. A Loop may
// call Base.Pump to fall back to the default message pump.
type Looper interface {
	Loop(ctx context.Context) error
}

// Receiver is implemented by actors that consume payloads through the
// default message pump.
type Receiver[In any] interface {
	Recv(ctx context.Context, msg In) error
}

// Starter is implemented by actors that need setup before their loop runs.
type Starter interface {
	Startup(ctx context.Context) error
}

// Stopper is implemented by actors that need cleanup after their loop ended.
// Shutdown runs even if Startup or the loop failed.
type Stopper interface {
	Shutdown(ctx context.Context) error
}

// binding carries everything Relay.Connect assigns to an actor.
type binding struct {
	group   string
	name    string
	role    Role
	logs    *Queue[Record]
	logName string
}

// wiring is the type-erased view of a Base used by the Relay.
type wiring interface {
	bind(self Actor, b binding) error
	bound() bool
	inType() reflect.Type
	outType() reflect.Type
	canLoop(self Actor) bool
	canReceive(self Actor) bool
	newOutbox(maxsize int) any
	attachOutbox(q any) error
	attachInbox(q any, b *boundary) error
	run(ctx context.Context) error
}

// Base implements the runtime side of an actor consuming In and producing
// Out. Embed it in actor types and pass pointers of those types to
// Relay.Connect.
type Base[In, Out any] struct {
	self    Actor
	id      uuid.UUID
	name    string
	group   string
	role    Role
	inbox   *Queue[In]
	outbox  *Queue[Out]
	counter *boundary
	logs    *Queue[Record]
	logName string
	metrics *groupMetrics

	// eol is set once the pump consumed this actor's EOL.
	eol bool
}

var _ wiring = (*Base[int, int])(nil)

func (b *Base[In, Out]) base() wiring {
	return b
}

// SetName overrides the generated actor name. It must be called before
// Relay.Connect.
func (b *Base[In, Out]) SetName(name string) {
	b.name = name
}

// Name returns the actor name.
func (b *Base[In, Out]) Name() string {
	return b.name
}

// Group returns the name of the group the actor belongs to.
func (b *Base[In, Out]) Group() string {
	return b.group
}

// ID returns the id assigned by Relay.Connect.
func (b *Base[In, Out]) ID() uuid.UUID {
	return b.id
}

// Role returns the position of the actor in the pipeline.
func (b *Base[In, Out]) Role() Role {
	return b.role
}

// Sender reports whether the actor has an outbound queue and may call Send.
func (b *Base[In, Out]) Sender() bool {
	return b.outbox != nil
}

// Receiver reports whether the actor has an inbound queue.
func (b *Base[In, Out]) Receiver() bool {
	return b.inbox != nil
}

// Send enqueues msg on the outbound queue shared with the next group. It
// blocks while a bounded queue is full.
func (b *Base[In, Out]) Send(ctx context.Context, msg Out) error {
	if b.outbox == nil {
		return ErrNotSender
	}
	if err := b.outbox.Put(ctx, msg); err != nil {
		return err
	}
	b.metrics.sent.Inc()
	return nil
}

// Pump is the default message loop. It hands every payload of the inbound
// queue to Recv until the group's EOL arrives.
func (b *Base[In, Out]) Pump(ctx context.Context) error {
	if b.inbox == nil {
		return ErrNotReceiver
	}
	r, ok := b.self.(Receiver[In])
	if !ok {
		return fmt.Errorf("%w: %T does not implement Recv", ErrNoLoop, b.self)
	}
	return b.consume(ctx, func(msg In) error {
		b.metrics.received.Inc()
		return protect("recv", func() error {
			return r.Recv(ctx, msg)
		})
	})
}

// consume reads the inbound queue until EOL. Poison pills are counted and
// never end the loop.
func (b *Base[In, Out]) consume(ctx context.Context, handle func(In) error) error {
	for {
		item, err := b.inbox.Get(ctx)
		if err != nil {
			return err
		}
		switch item.Control {
		case Poison:
			if err := b.addPoison(ctx); err != nil {
				return err
			}
		case EOL:
			b.eol = true
			return nil
		default:
			if err := handle(item.Value); err != nil {
				return err
			}
		}
	}
}

// drain discards payloads until EOL so that upstream never blocks on a
// failed actor and the termination count still completes.
func (b *Base[In, Out]) drain(ctx context.Context) error {
	dropped := 0
	err := b.consume(ctx, func(In) error {
		dropped++
		b.metrics.dropped.Inc()
		return nil
	})
	if dropped > 0 {
		b.Warn("dropped messages after failure", "dropped", dropped)
	}
	return err
}

func (b *Base[In, Out]) addPoison(ctx context.Context) error {
	b.metrics.poison.Inc()
	received, err := b.counter.addPoison(func(peers int) (int, error) {
		for i := range peers {
			if err := b.inbox.PutControl(ctx, EOL); err != nil {
				return i, err
			}
		}
		return peers, nil
	})
	b.Debug(fmt.Sprintf("received %d/%d poison pills", received, b.counter.expected))
	return err
}

func (b *Base[In, Out]) loop(ctx context.Context) error {
	if l, ok := b.self.(Looper); ok {
		return l.Loop(ctx)
	}
	return b.Pump(ctx)
}

func (b *Base[In, Out]) run(ctx context.Context) error {
	b.metrics.running.Inc()
	defer b.metrics.running.Dec()

	b.Info("starting up")
	var errs []error

	err := protect("startup", func() error {
		if s, ok := b.self.(Starter); ok {
			return s.Startup(ctx)
		}
		return nil
	})
	if err == nil {
		b.Debug("running loop")
		err = protect("loop", func() error {
			return b.loop(ctx)
		})
		b.Debug("leaving loop")
	}

	if err != nil {
		errs = append(errs, err)
		b.Error("actor failed", "error", err)
		// an actor failing after its EOL has nothing left to drain
		if b.inbox != nil && !b.eol && ctx.Err() == nil {
			if derr := b.drain(ctx); derr != nil {
				b.Debug("drain aborted", "error", derr)
			}
		}
	}

	if b.outbox != nil {
		if perr := b.outbox.PutControl(ctx, Poison); perr != nil && err == nil {
			errs = append(errs, perr)
		}
	}

	b.Debug("shutting down")
	if serr := protect("shutdown", func() error {
		if s, ok := b.self.(Stopper); ok {
			return s.Shutdown(ctx)
		}
		return nil
	}); serr != nil {
		errs = append(errs, serr)
	}
	b.Info("shut down complete")

	if len(errs) == 0 {
		return nil
	}
	b.metrics.failures.Inc()
	return &ActorError{Group: b.group, Actor: b.name, Err: errors.Join(errs...)}
}

// Log enqueues a record on the relay's log queue. Actors must not write to
// the logging sink directly.
func (b *Base[In, Out]) Log(level slog.Level, msg string, args ...any) {
	if b.logs == nil {
		return
	}
	attrs := make([]any, 0, len(args)+4)
	attrs = append(attrs, args...)
	attrs = append(attrs, "group", b.group, "actor", b.name)
	// the log queue is unbounded, Put never blocks
	_ = b.logs.Put(context.Background(), Record{
		Time:   time.Now(),
		Logger: b.logName,
		Level:  level,
		Msg:    msg,
		Args:   attrs,
	})
}

// Debug logs at slog.LevelDebug.
func (b *Base[In, Out]) Debug(msg string, args ...any) {
	b.Log(slog.LevelDebug, msg, args...)
}

// Info logs at slog.LevelInfo.
func (b *Base[In, Out]) Info(msg string, args ...any) {
	b.Log(slog.LevelInfo, msg, args...)
}

// Warn logs at slog.LevelWarn.
func (b *Base[In, Out]) Warn(msg string, args ...any) {
	b.Log(slog.LevelWarn, msg, args...)
}

// Error logs at slog.LevelError.
func (b *Base[In, Out]) Error(msg string, args ...any) {
	b.Log(slog.LevelError, msg, args...)
}

func (b *Base[In, Out]) bind(self Actor, bd binding) error {
	if b.self != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, stage(b.group, b.name))
	}
	b.self = self
	b.id = uuid.New()
	b.group = bd.group
	b.role = bd.role
	b.logs = bd.logs
	b.logName = bd.logName
	if b.name == "" {
		b.name = bd.name
	}
	b.metrics = newGroupMetrics(bd.group)
	return nil
}

func (b *Base[In, Out]) bound() bool {
	return b.self != nil
}

func (b *Base[In, Out]) inType() reflect.Type {
	return reflect.TypeFor[In]()
}

func (b *Base[In, Out]) outType() reflect.Type {
	return reflect.TypeFor[Out]()
}

func (b *Base[In, Out]) canLoop(self Actor) bool {
	_, ok := self.(Looper)
	return ok
}

func (b *Base[In, Out]) canReceive(self Actor) bool {
	_, ok := self.(Receiver[In])
	return ok
}

func (b *Base[In, Out]) newOutbox(maxsize int) any {
	return NewQueue[Out](maxsize)
}

func (b *Base[In, Out]) attachOutbox(q any) error {
	out, ok := q.(*Queue[Out])
	if !ok {
		return fmt.Errorf("%w: %s sends %v", ErrTypeMismatch, stage(b.group, b.name), b.outType())
	}
	b.outbox = out
	return nil
}

func (b *Base[In, Out]) attachInbox(q any, counter *boundary) error {
	in, ok := q.(*Queue[In])
	if !ok {
		return fmt.Errorf("%w: %s receives %v", ErrTypeMismatch, stage(b.group, b.name), b.inType())
	}
	b.inbox = in
	b.counter = counter
	return nil
}

// protect converts a panic inside fn into a RecoveryError.
func protect(hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RecoveryError{
				Hook:       hook,
				PanicValue: r,
				StackTrace: string(debug.Stack()),
			}
		}
	}()
	return fn()
}

// loggerName returns the package path of the actor's type.
func loggerName(a Actor) string {
	t := reflect.TypeOf(a)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if p := t.PkgPath(); p != "" {
		return p
	}
	return "relay"
}
