package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fxsml/gorelay/fsutil"
	"github.com/google/uuid"
)

// Config configures a Relay.
type Config struct {
	// MaxSize bounds every queue between two groups. Producers block while
	// a queue holds MaxSize values, which applies backpressure on fast
	// upstream groups.
	// Default is 0 (unbounded, no backpressure).
	MaxSize int `yaml:"max_size"`

	// Log overrides the logger name attached to actor records.
	// Default is the package path of each actor's type.
	Log string `yaml:"log"`

	// LogFile writes all records as JSON lines to this file instead of
	// Logger. Missing parent directories are created and an existing file
	// is rotated (app.log becomes app.1.log).
	LogFile string `yaml:"log_file"`

	// LogFileKeep is the number of rotated log files to keep.
	// Default is 0 (keep all).
	LogFileKeep int `yaml:"log_file_keep"`

	// Logger is the sink for actor and relay records.
	// Default is the logger set with SetDefaultLogger, resolved whenever the
	// relay logs.
	Logger *slog.Logger `yaml:"-"`
}

func (c Config) parse() Config {
	if c.MaxSize < 0 {
		c.MaxSize = 0
	}
	return c
}

// Group is a named set of peer actors occupying one pipeline stage.
type Group struct {
	Name   string
	Actors []Actor
}

// Actors creates a group named after its position in Relay.Connect.
func Actors(actors ...Actor) Group {
	return Group{Actors: actors}
}

// Named creates a named group.
func Named(name string, actors ...Actor) Group {
	return Group{Name: name, Actors: actors}
}

// GroupOf creates a named group from a slice of concrete actors.
// An empty name is replaced by the group's position in Relay.Connect.
func GroupOf[A Actor](name string, actors []A) Group {
	g := Group{Name: name, Actors: make([]Actor, len(actors))}
	for i, a := range actors {
		g.Actors[i] = a
	}
	return g
}

// Relay wires groups of actors into a pipeline and manages their lifecycle.
type Relay struct {
	cfg   Config
	runID uuid.UUID

	mu         sync.Mutex
	groups     []Group
	boundaries []*boundary
	logs       *logRelay
	connected  bool
	started    bool
}

// New creates a Relay. Call Connect once to define the pipeline, then Start.
func New(cfg Config) *Relay {
	return &Relay{
		cfg:   cfg.parse(),
		runID: uuid.New(),
		logs:  newLogRelay(),
	}
}

// Connect wires the groups in the given order. Every pair of adjacent groups
// shares one queue: all actors of the upstream group send to it and all
// actors of the downstream group compete for its values.
//
// Connect must be called exactly once and needs at least two groups. The
// actors of the first group must implement Looper; all other actors must
// implement Looper or Receiver. The Out type of a group must match the In
// type of the next one.
func (r *Relay) Connect(groups ...Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected {
		return ErrAlreadyConnected
	}
	if len(groups) < 2 {
		return ErrTooFewGroups
	}

	named := make([]Group, len(groups))
	seen := make(map[string]bool, len(groups))
	members := make(map[Actor]string)
	for i, g := range groups {
		if g.Name == "" {
			g.Name = fmt.Sprintf("group-%d", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("relay: duplicate group %q", g.Name)
		}
		seen[g.Name] = true
		if err := validate(g, i); err != nil {
			return err
		}
		for _, a := range g.Actors {
			if other, ok := members[a]; ok {
				return fmt.Errorf("%w: actor %s listed in %s and %s", ErrAlreadyConnected, a.Name(), other, g.Name)
			}
			members[a] = g.Name
		}
		named[i] = g
	}
	for i := 1; i < len(named); i++ {
		if err := matchTypes(named[i-1], named[i]); err != nil {
			return err
		}
	}

	last := len(named) - 1
	for i, g := range named {
		role := RoleStage
		switch i {
		case 0:
			role = RoleSource
		case last:
			role = RoleSink
		}
		for j, a := range g.Actors {
			logName := r.cfg.Log
			if logName == "" {
				logName = loggerName(a)
			}
			err := a.base().bind(a, binding{
				group:   g.Name,
				name:    fmt.Sprintf("%s-%d", typeName(a), j),
				role:    role,
				logs:    r.logs.q,
				logName: logName,
			})
			if err != nil {
				return err
			}
		}
	}

	for i := 1; i < len(named); i++ {
		up, down := named[i-1], named[i]
		q := up.Actors[0].base().newOutbox(r.cfg.MaxSize)
		for _, a := range up.Actors {
			if err := a.base().attachOutbox(q); err != nil {
				return err
			}
		}
		counter := newBoundary(len(up.Actors), len(down.Actors))
		for _, a := range down.Actors {
			if err := a.base().attachInbox(q, counter); err != nil {
				return err
			}
		}
		r.boundaries = append(r.boundaries, counter)
	}

	r.groups = named
	r.connected = true
	r.logger().Info(fmt.Sprintf("relay: maintaining %d groups", len(named)), "relay", r.runID.String())
	return nil
}

func (r *Relay) logger() *slog.Logger {
	if r.cfg.Logger != nil {
		return r.cfg.Logger
	}
	return logger
}

func validate(g Group, position int) error {
	if len(g.Actors) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyGroup, g.Name)
	}
	for _, a := range g.Actors {
		if isNil(a) {
			return fmt.Errorf("relay: nil actor in group %s", g.Name)
		}
		w := a.base()
		if w.bound() {
			return fmt.Errorf("%w: %s", ErrAlreadyConnected, stage(g.Name, a.Name()))
		}
		if w.canLoop(a) {
			continue
		}
		if position == 0 {
			return fmt.Errorf("%w: %s (%T) has no inbound queue and does not implement Loop",
				ErrNoLoop, stage(g.Name, a.Name()), a)
		}
		if !w.canReceive(a) {
			return fmt.Errorf("%w: %s (%T) implements neither Loop nor Recv",
				ErrNoLoop, stage(g.Name, a.Name()), a)
		}
	}
	return nil
}

func matchTypes(up, down Group) error {
	out := up.Actors[0].base().outType()
	for _, a := range up.Actors[1:] {
		if t := a.base().outType(); t != out {
			return fmt.Errorf("%w: group %s sends both %v and %v", ErrTypeMismatch, up.Name, out, t)
		}
	}
	for _, a := range down.Actors {
		if t := a.base().inType(); t != out {
			return fmt.Errorf("%w: group %s sends %v, %s receives %v",
				ErrTypeMismatch, up.Name, out, stage(down.Name, a.Name()), t)
		}
	}
	return nil
}

// Groups returns the connected groups in pipeline order.
func (r *Relay) Groups() []Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups := make([]Group, len(r.groups))
	copy(groups, r.groups)
	return groups
}

type proc struct {
	actor Actor
	done  chan struct{}
	err   error
}

// Start runs the pipeline and blocks until every actor finished.
//
// All actors are started in group order, then the log relay. If h is not
// nil, h.Run is called on the calling goroutine; Start waits for it to
// return before joining the actors in start order. Finally the log relay is
// drained and stopped. The returned error joins the errors of all failed
// actors and of the handler.
func (r *Relay) Start(ctx context.Context, h Handler) error {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return ErrNotConnected
	}
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	log := r.logger()
	if r.cfg.LogFile != "" {
		f, err := openLogFile(r.cfg.LogFile, r.cfg.LogFileKeep)
		if err != nil {
			return err
		}
		defer f.Close()
		log = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	log = log.With("relay", r.runID.String())

	log.Info("relay: starting actors")
	var procs []*proc
	for _, g := range r.groups {
		for _, a := range g.Actors {
			p := &proc{actor: a, done: make(chan struct{})}
			go func() {
				defer close(p.done)
				p.err = a.base().run(ctx)
			}()
			procs = append(procs, p)
		}
	}

	log.Info("relay: starting log relay")
	r.logs.start(log)

	var errs []error
	if h != nil {
		log.Info("relay: handing control to handler")
		if err := protect("handler", func() error { return h.Run(ctx) }); err != nil {
			errs = append(errs, fmt.Errorf("relay: handler: %w", err))
		}
	}

	// join in start order, the way the poison travels downstream
	log.Info(fmt.Sprintf("relay: waiting for %d actors to finish", len(procs)))
	for _, p := range procs {
		log.Debug("relay: waiting for " + p.actor.Name())
		<-p.done
		if p.err != nil {
			errs = append(errs, p.err)
		}
	}

	log.Info("relay: waiting for log relay")
	r.logs.stop()

	log.Info("relay: finished, exiting")
	return errors.Join(errs...)
}

func openLogFile(name string, keep int) (*os.File, error) {
	if _, err := fsutil.Path(filepath.Dir(name), fsutil.PathOptions{Create: true}); err != nil {
		return nil, err
	}
	if _, err := os.Stat(name); err == nil {
		if err := fsutil.Rotate(name, keep); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// isNil reports nil interfaces and typed nil pointers.
func isNil(a Actor) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func typeName(a Actor) string {
	t := reflect.TypeOf(a)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if n := t.Name(); n != "" {
		return n
	}
	return "actor"
}
