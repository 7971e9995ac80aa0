// Package callbacks provides per-instance named hooks. Each defined hook owns
// an ordered list of callables run before and after a body.
//
// Defining a hook:
//
//	engine := callbacks.New[Hook]()
//	engine.Define(HookScan)
//
// Attaching behavior:
//
//	engine.After(HookScan, func(args ...interface{}) error { ... })
//
// Running it:
//
//	err := engine.Run(HookScan, func() error { return scan(path) }, processable)
package callbacks

import (
	"errors"
	"fmt"
)

// ErrNotDefined is returned when a hook is used before it was defined
var ErrNotDefined = errors.New("callbacks not defined")

// Callable is a hook callback. It receives the arguments given to Run.
type Callable func(args ...interface{}) error

type chain struct {
	before []Callable
	after  []Callable
}

// Engine holds the hooks of one instance. It is not safe for concurrent use.
type Engine[K comparable] struct {
	hooks map[K]*chain
}

// New creates an engine with no hooks defined
func New[K comparable]() *Engine[K] {
	return &Engine[K]{hooks: make(map[K]*chain)}
}

// Define registers hook with empty before and after lists. Defining an
// existing hook clears its callables.
func (e *Engine[K]) Define(hook K) {
	e.hooks[hook] = &chain{}
}

// Defined reports whether hook was defined
func (e *Engine[K]) Defined(hook K) bool {
	_, ok := e.hooks[hook]
	return ok
}

// Before appends a callable run before the hook body
func (e *Engine[K]) Before(hook K, callable Callable) error {
	c, err := e.chain(hook)
	if err != nil {
		return err
	}
	c.before = append(c.before, callable)
	return nil
}

// After appends a callable run after the hook body
func (e *Engine[K]) After(hook K, callable Callable) error {
	c, err := e.chain(hook)
	if err != nil {
		return err
	}
	c.after = append(c.after, callable)
	return nil
}

// Run invokes the before callables, then body, then the after callables, all
// in registration order and with args. The first error stops the sequence and
// is returned; after callables do not run when body fails.
func (e *Engine[K]) Run(hook K, body func() error, args ...interface{}) error {
	c, err := e.chain(hook)
	if err != nil {
		return err
	}

	if err := runCallables(c.before, args); err != nil {
		return err
	}

	if err := body(); err != nil {
		return err
	}

	return runCallables(c.after, args)
}

// Len returns the number of before and after callables registered for hook
func (e *Engine[K]) Len(hook K) (before, after int) {
	c, ok := e.hooks[hook]
	if !ok {
		return 0, 0
	}
	return len(c.before), len(c.after)
}

func (e *Engine[K]) chain(hook K) (*chain, error) {
	c, ok := e.hooks[hook]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotDefined, hook)
	}
	return c, nil
}

func runCallables(callables []Callable, args []interface{}) error {
	for _, callable := range callables {
		if err := callable(args...); err != nil {
			return err
		}
	}
	return nil
}
