package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxsml/gorelay/collections"
	"github.com/fxsml/gorelay/fsutil"
	"github.com/fxsml/gorelay/relay"
)

type producerConfig struct {
	Count  int           `yaml:"count"`
	Delay  time.Duration `yaml:"delay"`
	Amount int           `yaml:"amount"`
}

type workerConfig struct {
	Count int           `yaml:"count"`
	Delay time.Duration `yaml:"delay"`
}

type consumerConfig struct {
	Delay  time.Duration `yaml:"delay"`
	Output string        `yaml:"output"`
	Keep   int           `yaml:"keep"`
}

// demoConfig describes the topology
//
//	prod (N) → prep (M) → post (K) → cons (1)
//
// and is read from flags, an optional YAML file and GORELAY_RELAYDEMO_*
// variables.
type demoConfig struct {
	Relay  relay.Config   `yaml:"relay"`
	Prod   producerConfig `yaml:"prod"`
	Prep   workerConfig   `yaml:"prep"`
	Post   workerConfig   `yaml:"post"`
	Cons   consumerConfig `yaml:"cons"`
	Report time.Duration  `yaml:"report"`
}

// With 3 producers sending 10 messages per second each, prep handling 10/s
// and post handling 10/s, a MaxSize of 50 throttles the producers.
func defaultConfig() demoConfig {
	return demoConfig{
		Relay: relay.Config{MaxSize: 50, Log: "gorelay.demo"},
		Prod:  producerConfig{Count: 3, Delay: 100 * time.Millisecond, Amount: 100},
		Prep:  workerConfig{Count: 10, Delay: time.Second},
		Post:  workerConfig{Count: 5, Delay: 500 * time.Millisecond},
		Cons:  consumerConfig{Output: "relaydemo.txt"},

		Report: time.Second,
	}
}

func (c demoConfig) validate() error {
	switch {
	case c.Prod.Count < 1:
		return fmt.Errorf("prod: count must be positive, got %d", c.Prod.Count)
	case c.Prep.Count < 1:
		return fmt.Errorf("prep: count must be positive, got %d", c.Prep.Count)
	case c.Post.Count < 1:
		return fmt.Errorf("post: count must be positive, got %d", c.Post.Count)
	case c.Prod.Amount < 0:
		return fmt.Errorf("prod: amount must not be negative, got %d", c.Prod.Amount)
	case c.Cons.Output == "":
		return fmt.Errorf("cons: output file required")
	}
	return nil
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Producer sends Amount messages downstream.
type Producer struct {
	relay.Base[relay.None, string]

	stats  *relay.Queue[string]
	delay  time.Duration
	amount int
}

func (p *Producer) Loop(ctx context.Context) error {
	for x := range p.amount {
		if err := pause(ctx, p.delay); err != nil {
			return err
		}
		if err := p.stats.Put(ctx, p.Group()); err != nil {
			return err
		}
		if err := p.Send(ctx, fmt.Sprintf("Message %d from %s", x, p.Name())); err != nil {
			return err
		}
	}
	p.Debug("all messages sent", "amount", p.amount)
	return nil
}

// Worker relays messages with a delay.
type Worker struct {
	relay.Base[string, string]

	stats *relay.Queue[string]
	delay time.Duration
}

func (w *Worker) Recv(ctx context.Context, msg string) error {
	if err := pause(ctx, w.delay); err != nil {
		return err
	}
	if err := w.stats.Put(ctx, w.Group()); err != nil {
		return err
	}
	return w.Send(ctx, fmt.Sprintf("%s handled by %s/%s", msg, w.Group(), w.Name()))
}

// Consumer writes every message as a line to a file. An existing file is
// rotated first.
type Consumer struct {
	relay.Base[string, relay.None]

	stats    *relay.Queue[string]
	delay    time.Duration
	filename string
	keep     int

	f *os.File
	w *bufio.Writer
}

func (c *Consumer) Startup(ctx context.Context) error {
	dir, err := fsutil.Path(filepath.Dir(c.filename), fsutil.PathOptions{Create: true})
	if err != nil {
		return err
	}
	name := filepath.Join(dir, filepath.Base(c.filename))
	if _, err := os.Stat(name); err == nil {
		if err := fsutil.Rotate(name, c.keep); err != nil {
			return err
		}
	}
	c.f, err = os.Create(name)
	if err != nil {
		return err
	}
	c.w = bufio.NewWriter(c.f)
	c.Info("writing results", "file", name)
	return nil
}

func (c *Consumer) Recv(ctx context.Context, msg string) error {
	if _, err := c.w.WriteString(msg + "\n"); err != nil {
		return err
	}
	if err := pause(ctx, c.delay); err != nil {
		return err
	}
	return c.stats.Put(ctx, c.Group())
}

// Shutdown closes the file and ends the progress stream.
func (c *Consumer) Shutdown(ctx context.Context) error {
	// the stats queue is unbounded, the EOL always goes through
	defer c.stats.PutControl(context.Background(), relay.EOL)
	if c.f == nil {
		return nil
	}
	err := c.w.Flush()
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// member assigns an actor to a group before the groups are assembled.
type member struct {
	group string
	actor relay.Actor
}

func buildGroups(cfg demoConfig, stats *relay.Queue[string]) []relay.Group {
	var members []member
	for range cfg.Prod.Count {
		members = append(members, member{"prod", &Producer{stats: stats, delay: cfg.Prod.Delay, amount: cfg.Prod.Amount}})
	}
	for range cfg.Prep.Count {
		members = append(members, member{"prep", &Worker{stats: stats, delay: cfg.Prep.Delay}})
	}
	for range cfg.Post.Count {
		members = append(members, member{"post", &Worker{stats: stats, delay: cfg.Post.Delay}})
	}
	members = append(members, member{"cons", &Consumer{
		stats:    stats,
		delay:    cfg.Cons.Delay,
		filename: cfg.Cons.Output,
		keep:     cfg.Cons.Keep,
	}})

	buckets := collections.Buckets(members, func(_ int, m member) (string, relay.Actor) {
		return m.group, m.actor
	})
	groups := make([]relay.Group, len(buckets))
	for i, b := range buckets {
		groups[i] = relay.Named(b.Key, b.Items...)
	}
	return groups
}

// progress counts handled messages per group and reports them to out.
type progress struct {
	out    io.Writer
	order  []string
	totals map[string]int
	counts map[string]int
	every  time.Duration
	last   time.Time
}

func newProgress(out io.Writer, groups []relay.Group, totals map[string]int, every time.Duration) *progress {
	p := &progress{
		out:    out,
		totals: totals,
		counts: make(map[string]int, len(groups)),
		every:  every,
		last:   time.Now(),
	}
	for _, g := range groups {
		p.order = append(p.order, g.Name)
	}
	return p
}

func (p *progress) update(_ context.Context, group string) error {
	p.counts[group]++
	if p.every > 0 && time.Since(p.last) >= p.every {
		p.report()
	}
	return nil
}

func (p *progress) report() {
	p.last = time.Now()
	fmt.Fprintln(p.out, p.line())
}

func (p *progress) line() string {
	parts := make([]string, len(p.order))
	for i, g := range p.order {
		if total, ok := p.totals[g]; ok {
			parts[i] = fmt.Sprintf("%s %d/%d", g, p.counts[g], total)
			continue
		}
		parts[i] = fmt.Sprintf("%s %d", g, p.counts[g])
	}
	return strings.Join(parts, " | ")
}

// handler consumes the stats queue in the coordinator until the consumer
// signals the end of the stream, then prints the final counts.
func (p *progress) handler(stats *relay.Queue[string]) relay.Handler {
	consume := relay.ConsumeHandler(stats, p.update)
	return relay.HandlerFunc(func(ctx context.Context) error {
		err := consume.Run(ctx)
		p.report()
		return err
	})
}

// runDemo wires and runs the pipeline, reporting progress to out.
func runDemo(ctx context.Context, cfg demoConfig, out io.Writer) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	stats := relay.NewQueue[string](0)
	groups := buildGroups(cfg, stats)

	log := cfg.Relay.Logger
	if log == nil {
		log = slog.Default()
	}
	topology := make([]any, 0, 2*len(groups))
	for _, g := range groups {
		topology = append(topology, g.Name, len(g.Actors))
	}
	log.Info("relaydemo: topology", topology...)

	total := cfg.Prod.Count * cfg.Prod.Amount
	p := newProgress(out, groups, map[string]int{"prod": total, "cons": total}, cfg.Report)

	r := relay.New(cfg.Relay)
	if err := r.Connect(groups...); err != nil {
		return err
	}
	return r.Start(ctx, p.handler(stats))
}
