// Package relay provides a small actor-pipeline runtime.
//
// Actors are independent goroutines wired into a linear chain of groups. All
// actors of a group are peers: they write to the same outbound [Queue] and
// compete for values on the same inbound [Queue]. A [Relay] wires the chain,
// starts every actor, optionally hands control to a [Handler] and joins
// everything once upstream work is exhausted.
//
// # Quick Start
//
//	type Producer struct {
//		relay.Base[relay.None, int]
//		n int
//	}
//
//	func (p *Producer) Loop(ctx context.Context) error {
//		for i := range p.n {
//			if err := p.Send(ctx, i); err != nil {
//				return err
//			}
//		}
//		return nil
//	}
//
//	type Printer struct {
//		relay.Base[int, relay.None]
//	}
//
//	func (p *Printer) Recv(ctx context.Context, v int) error {
//		p.Info("received", "value", v)
//		return nil
//	}
//
//	r := relay.New(relay.Config{MaxSize: 16})
//	_ = r.Connect(relay.Actors(&Producer{n: 10}), relay.Actors(&Printer{}, &Printer{}))
//	err := r.Start(ctx, nil)
//
// # Termination
//
// When an actor's loop returns it enqueues one [Poison] on its outbound queue.
// Downstream peers count poisons on a shared per-boundary counter; the peer
// whose increment reaches the size of the upstream group enqueues one [EOL]
// per downstream peer on the same inbound queue. Only an EOL ends the default
// message pump, so every peer exits exactly once and only after all payloads
// queued ahead of it were consumed.
//
// # Logging
//
// Actors never write to the logging sink themselves. [Base.Log] enqueues a
// [Record] on a queue shared by all actors of a relay, and a single goroutine
// owned by the relay re-emits the records through the configured slog
// handler.
//
// # Failures
//
// Panics inside actor hooks are recovered into a [RecoveryError]. An actor
// whose Startup, Loop or Recv fails keeps draining its inbound queue until its
// EOL arrives (unless its pump already consumed it), still emits its poison
// and still runs Shutdown, so a failure never leaves peers or the coordinator
// blocked. Errors are reported as [ActorError] values joined into the result
// of [Relay.Start].
package relay
