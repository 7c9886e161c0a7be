package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/theatre/internal/actor"
	"github.com/roach88/theatre/internal/cast"
	"github.com/roach88/theatre/internal/clock"
	"github.com/roach88/theatre/internal/store"
	"github.com/roach88/theatre/internal/trace"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	runIDs store.RunIDGenerator
}

// WithLogger sets the logger handed to every clock and actor.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithRunIDGenerator sets how run ids are chosen when the scenario does
// not fix one. Defaults to store.UUIDv7Generator.
func WithRunIDGenerator(gen store.RunIDGenerator) RunOption {
	return func(c *runConfig) {
		c.runIDs = gen
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string
	RunID    string

	// Pass is true when every assertion held.
	Pass   bool
	Errors []error

	clockNames []string
	clocks     map[string]*clock.Clock
	drive      *clock.Clock
	stopOrder  []string

	// byClock groups every actor, stopwatches included, by the clock it
	// listens to.
	byClock map[string]*cast.Cast

	// players are the scenario's actors, crew adds the stopwatches.
	players   *cast.Cast
	crew      *cast.Cast
	actors    map[string]*actor.Actor
	allocated map[string][]*trace.Task
}

// Actor returns the named scenario actor, or nil.
func (r *Result) Actor(name string) *actor.Actor {
	return r.actors[name]
}

// Players returns the cast of scenario actors, without stopwatches.
func (r *Result) Players() *cast.Cast {
	return r.players
}

// Clock returns the named clock, or nil.
func (r *Result) Clock(name string) *clock.Clock {
	return r.clocks[name]
}

// Allocated returns the tasks allocated to the named actor before the run.
func (r *Result) Allocated(name string) []*trace.Task {
	return r.allocated[name]
}

// FinalTick returns the drive clock's tick at the end of the run.
func (r *Result) FinalTick() int64 {
	return r.drive.Current()
}

// Export converts the result to a store run. Actors without task history
// are left out, as the store only records tasks.
func (r *Result) Export() *store.Run {
	run := &store.Run{
		ID:        r.RunID,
		Scenario:  r.Scenario,
		FinalTick: r.FinalTick(),
	}
	for _, name := range r.players.MemberNames() {
		history := r.actors[name].TaskHistory()
		if len(history) == 0 {
			continue
		}
		run.Actors = append(run.Actors, store.ActorTrace{Actor: name, Tasks: history})
	}
	return run
}

// Render returns a deterministic text report: final clock states, then
// each actor's task trees in name order.
func (r *Result) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", r.Scenario)
	for _, name := range r.clockNames {
		fmt.Fprintf(&b, "clock %s %s\n", name, r.clocks[name])
	}
	for _, name := range r.players.MemberNames() {
		fmt.Fprintf(&b, "%s\n", r.actors[name])
		b.WriteString(trace.FormatTrees(r.actors[name].TaskHistory()))
	}
	return b.String()
}

// Run builds the scenario's clocks, links and actors from lib, drives the
// run to its end, then evaluates the assertions.
//
// A run always ends: once driving stops, every clock stops issuing, so
// every actor still waiting for a turn runs out of turns.
func Run(ctx context.Context, lib *Library, sc *Scenario, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{
		logger: slog.Default(),
		runIDs: store.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := sc.CheckWorkflows(lib); err != nil {
		return nil, err
	}

	r := &Result{
		Scenario:  sc.Name,
		RunID:     sc.RunID,
		clocks:    make(map[string]*clock.Clock, len(sc.Clocks)),
		stopOrder: sc.shutdownOrder(),
		byClock:   make(map[string]*cast.Cast, len(sc.Clocks)),
		players:   cast.New(),
		crew:      cast.New(),
		actors:    make(map[string]*actor.Actor, len(sc.Actors)),
		allocated: make(map[string][]*trace.Task, len(sc.Actors)),
	}
	if r.RunID == "" {
		r.RunID = cfg.runIDs.Generate()
	}

	for _, spec := range sc.Clocks {
		clockOpts := []clock.Option{clock.WithName(spec.Name), clock.WithLogger(cfg.logger)}
		if spec.MaxTicks != nil {
			clockOpts = append(clockOpts, clock.WithMaxTicks(*spec.MaxTicks))
		}
		r.clocks[spec.Name] = clock.New(clockOpts...)
		r.byClock[spec.Name] = cast.New()
		r.clockNames = append(r.clockNames, spec.Name)
	}
	r.drive = r.clocks[sc.Drive.Clock]

	for _, l := range sc.Links {
		child, parent := r.clocks[l.Child], r.clocks[l.Parent]
		var precision clock.PrecisionFunc
		if l.PrecisionOffset != 0 {
			precision = clock.Offset(l.PrecisionOffset)
		}

		if l.Stopwatch {
			sw := actor.NewStopwatch(l.Name(), child, parent, l.Granularity, precision, actor.WithLogger(cfg.logger))
			r.crew.AddMember(sw)
			r.byClock[l.Child].AddMember(sw)
			continue
		}
		var bridgeOpts []clock.BridgeOption
		if precision != nil {
			bridgeOpts = append(bridgeOpts, clock.WithPrecision(precision))
		}
		clock.Link(child, parent, l.Granularity, bridgeOpts...)
	}

	for _, spec := range sc.Actors {
		a := actor.New(spec.Name, r.clocks[spec.Clock], actor.WithLogger(cfg.logger))
		if err := r.allocate(lib, a, spec); err != nil {
			return nil, err
		}
		if spec.Shutdown {
			a.InitiateShutdown()
		}
		r.actors[spec.Name] = a
		r.players.AddMember(a)
		r.crew.AddMember(a)
		r.byClock[spec.Clock].AddMember(a)
	}

	cfg.logger.Info("scenario started",
		"scenario", sc.Name,
		"run_id", r.RunID,
		"clocks", len(sc.Clocks),
		"actors", r.crew.Len())

	if err := r.perform(ctx, sc.Drive); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	r.Errors = EvaluateAssertions(r, sc.Assertions)
	r.Pass = len(r.Errors) == 0

	cfg.logger.Info("scenario finished",
		"scenario", sc.Name,
		"run_id", r.RunID,
		"tick", r.FinalTick(),
		"pass", r.Pass)
	return r, nil
}

// allocate instantiates one workflow instance per workflow name for the
// actor, so tasks of the same workflow share its binding.
func (r *Result) allocate(lib *Library, a *actor.Actor, spec ActorSpec) error {
	instances := map[string]actor.Schedulable{}
	for _, t := range spec.Tasks {
		wf, method, _ := t.Target()
		inst, ok := instances[wf]
		if !ok {
			var err error
			inst, err = lib.Instantiate(wf)
			if err != nil {
				return fmt.Errorf("actor %s: %w", spec.Name, err)
			}
			instances[wf] = inst
		}
		r.allocated[spec.Name] = append(r.allocated[spec.Name], a.AllocateTask(inst, method, t.Args...))
	}
	return nil
}

// perform drives the run and waits for every actor to stop.
func (r *Result) perform(ctx context.Context, d DriveSpec) error {
	manual := d.Ticks != nil || d.Until != nil

	// A lone self-driving clock is a plain episode.
	if !manual && len(r.clocks) == 1 {
		ep := &cast.Episode{Clock: r.drive, Cast: r.crew}
		return ep.Perform(ctx)
	}

	r.crew.Start(ctx)
	if manual {
		r.driveManually(ctx, d)
	} else {
		r.drive.Start(ctx)
		if err := r.drive.WaitForLastTick(ctx); err != nil {
			return fmt.Errorf("wait for last tick: %w", err)
		}
	}

	return r.stop(ctx)
}

// stop shuts clocks down children first. Each clock's actors must have
// stopped before its parent stops issuing, so a stopwatch's final parent
// tick always lands.
func (r *Result) stop(ctx context.Context) error {
	for _, name := range r.stopOrder {
		r.clocks[name].Shutdown()
		if err := r.byClock[name].WaitForShutdown(ctx); err != nil {
			return fmt.Errorf("stop clock %s: %w", name, err)
		}
	}
	return nil
}

func (r *Result) driveManually(ctx context.Context, d DriveSpec) {
	for i := int64(0); d.Ticks == nil || i < *d.Ticks; i++ {
		if d.Until != nil && r.clocks[d.Until.Clock].Current() >= d.Until.Tick {
			return
		}
		if ctx.Err() != nil || !r.drive.Tick() {
			return
		}
	}
}
