package relay

import (
	"context"
	"log/slog"
	"time"
)

// Record is a log entry produced by an actor and re-emitted by the relay.
type Record struct {
	Time   time.Time
	Logger string
	Level  slog.Level
	Msg    string
	Args   []any
}

// logRelay funnels the records of all actors into a single writer.
type logRelay struct {
	q      *Queue[Record]
	logger *slog.Logger
	done   chan struct{}
}

func newLogRelay() *logRelay {
	return &logRelay{
		q:    NewQueue[Record](0),
		done: make(chan struct{}),
	}
}

func (l *logRelay) start(logger *slog.Logger) {
	l.logger = logger
	go func() {
		defer close(l.done)
		// the queue must be emptied even after the coordinator's context
		// ended, so the relay only stops on EOL
		ctx := context.Background()
		for {
			item, err := l.q.Get(ctx)
			if err != nil || item.Control == EOL {
				return
			}
			if item.IsControl() {
				continue
			}
			l.emit(ctx, item.Value)
		}
	}()
}

func (l *logRelay) emit(ctx context.Context, rec Record) {
	h := l.logger.Handler()
	if !h.Enabled(ctx, rec.Level) {
		return
	}
	r := slog.NewRecord(rec.Time, rec.Level, rec.Msg, 0)
	r.AddAttrs(slog.String("logger", rec.Logger))
	r.Add(rec.Args...)
	_ = h.Handle(ctx, r)
}

func (l *logRelay) stop() {
	_ = l.q.PutControl(context.Background(), EOL)
	<-l.done
}
