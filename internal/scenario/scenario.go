// Package scenario drives a sim.World from a Lua script, so that scenes can
// be rendered offline and reproduced exactly.
//
// Scripts see these globals:
//
//	gravity(v)             slider 0..1
//	bounce(h, v)           wall restitution sliders 0..1
//	launch(x, y, vx, vy)   spawn a ball, returns its voice or nil
//	add(n)                 spawn n random balls, returns how many spawned
//	sample(name)           switch the sample; raises on failure
//	wait(seconds)          advance the world and the audio
//	clear()                remove every ball
//	count()                number of live balls
//	elapsed()              seconds waited so far
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/samplebox/internal/mapping"
	"github.com/cbegin/samplebox/internal/sim"
)

// DefaultFrame is the simulation step used by wait.
const DefaultFrame = 1.0 / 60

// DefaultMaxDuration bounds the total time a script may wait.
const DefaultMaxDuration = 600.0

// ErrTooLong is returned when a script waits past the maximum duration.
var ErrTooLong = errors.New("scenario: maximum duration exceeded")

// Loader switches the active sample.
type Loader interface {
	ReloadSample(name string) error
}

// AdvanceFunc is called after every simulation frame with the frame length
// in seconds. Renderers produce that much audio in it.
type AdvanceFunc func(seconds float64) error

type Runner struct {
	world   *sim.World
	loader  Loader
	advance AdvanceFunc
	rng     *rand.Rand
	logger  *log.Logger

	frame   float64
	max     float64
	elapsed float64
	frames  int
	err     error // first Go-side failure raised into the script
}

type Option func(*Runner)

// WithSeed seeds the generator behind add().
func WithSeed(seed uint64) Option {
	return func(r *Runner) { r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithFrame sets the simulation step in seconds.
func WithFrame(seconds float64) Option {
	return func(r *Runner) {
		if seconds > 0 {
			r.frame = seconds
		}
	}
}

// WithMaxDuration bounds the total waited time in seconds.
func WithMaxDuration(seconds float64) Option {
	return func(r *Runner) {
		if seconds > 0 {
			r.max = seconds
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runner. advance may be nil when only the world matters.
func New(world *sim.World, loader Loader, advance AdvanceFunc, opts ...Option) *Runner {
	r := &Runner{
		world:   world,
		loader:  loader,
		advance: advance,
		logger:  log.New(io.Discard, "", 0),
		frame:   DefaultFrame,
		max:     DefaultMaxDuration,
	}
	WithSeed(1)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Elapsed returns the seconds waited so far.
func (r *Runner) Elapsed() float64 { return r.elapsed }

// Frames returns the number of simulation frames stepped so far.
func (r *Runner) Frames() int { return r.frames }

// Run executes src. name is used in error messages.
func (r *Runner) Run(ctx context.Context, name, src string) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	L.SetContext(ctx)
	r.register(L)

	r.err = nil
	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if r.err != nil {
			return fmt.Errorf("scenario %s: %w", name, r.err)
		}
		return fmt.Errorf("scenario %s: %w", name, err)
	}
	return nil
}

func (r *Runner) register(L *lua.LState) {
	funcs := map[string]lua.LGFunction{
		"gravity": r.luaGravity,
		"bounce":  r.luaBounce,
		"launch":  r.luaLaunch,
		"add":     r.luaAdd,
		"sample":  r.luaSample,
		"wait":    r.luaWait,
		"clear":   r.luaClear,
		"count":   r.luaCount,
		"elapsed": r.luaElapsed,
	}
	for name, fn := range funcs {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

func (r *Runner) luaGravity(L *lua.LState) int {
	r.world.SetGravity(float64(L.CheckNumber(1)))
	return 0
}

func (r *Runner) luaBounce(L *lua.LState) int {
	r.world.SetHorizontalBounce(float64(L.CheckNumber(1)))
	r.world.SetVerticalBounce(float64(L.OptNumber(2, L.CheckNumber(1))))
	return 0
}

func (r *Runner) luaLaunch(L *lua.LState) int {
	pos := mapping.Vec2{X: float64(L.CheckNumber(1)), Y: float64(L.CheckNumber(2))}
	vel := mapping.Vec2{X: float64(L.CheckNumber(3)), Y: float64(L.CheckNumber(4))}
	if !r.world.InBox(pos) {
		L.ArgError(1, "position outside the box")
		return 0
	}
	b, err := r.world.Spawn(pos, vel)
	if err != nil {
		r.logger.Printf("scenario: launch: %v", err)
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(b.Voice))
	return 1
}

func (r *Runner) luaAdd(L *lua.LState) int {
	n := L.OptInt(1, 1)
	added := 0
	for i := 0; i < n; i++ {
		if _, err := r.world.AddRandom(r.rng); err != nil {
			r.logger.Printf("scenario: add: %v", err)
			break
		}
		added++
	}
	L.Push(lua.LNumber(added))
	return 1
}

func (r *Runner) luaSample(L *lua.LState) int {
	name := L.CheckString(1)
	if r.loader == nil {
		L.RaiseError("sample %q: no loader", name)
		return 0
	}
	// Live balls carry rates computed against the old sample length.
	r.world.Clear()
	if err := r.loader.ReloadSample(name); err != nil {
		r.err = err
		L.RaiseError("sample %q: %v", name, err)
	}
	return 0
}

func (r *Runner) luaWait(L *lua.LState) int {
	seconds := float64(L.CheckNumber(1))
	if seconds < 0 || math.IsNaN(seconds) {
		L.ArgError(1, "negative wait")
		return 0
	}
	if err := r.Wait(L.Context(), seconds); err != nil {
		r.err = err
		L.RaiseError("wait: %v", err)
	}
	return 0
}

func (r *Runner) luaClear(L *lua.LState) int {
	r.world.Clear()
	return 0
}

func (r *Runner) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(r.world.Len()))
	return 1
}

func (r *Runner) luaElapsed(L *lua.LState) int {
	L.Push(lua.LNumber(r.elapsed))
	return 1
}

// Wait steps the world frame by frame for the given duration, calling the
// advance function after every frame.
func (r *Runner) Wait(ctx context.Context, seconds float64) error {
	if r.elapsed+seconds > r.max+1e-9 {
		return ErrTooLong
	}
	n := int(math.Round(seconds / r.frame))
	for range n {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r.world.Step(r.frame)
		r.frames++
		r.elapsed += r.frame
		if r.advance != nil {
			if err := r.advance(r.frame); err != nil {
				return err
			}
		}
	}
	return nil
}
