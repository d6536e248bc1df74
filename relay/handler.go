package relay

import "context"

// Handler runs in the coordinator while the pipeline is running, typically to
// report progress from a side queue fed by actors. Relay.Start joins the
// actors only after Run returned, so Run must return once it observed the
// end of its stream; usually a terminal actor's Shutdown puts an EOL on the
// handler's queue.
type Handler interface {
	Run(ctx context.Context) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f HandlerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// ConsumeHandler returns a Handler that applies fn to every payload of q
// until an EOL arrives. Poison pills are ignored. The first error returned by
// fn or by the context ends Run.
func ConsumeHandler[T any](q *Queue[T], fn func(context.Context, T) error) Handler {
	return HandlerFunc(func(ctx context.Context) error {
		for {
			item, err := q.Get(ctx)
			if err != nil {
				return err
			}
			switch item.Control {
			case EOL:
				return nil
			case Poison:
				continue
			}
			if err := fn(ctx, item.Value); err != nil {
				return err
			}
		}
	})
}
