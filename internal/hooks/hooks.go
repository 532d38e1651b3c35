// Package hooks is the extension hook bus. Each hook point is an ordered
// chain: every registered hook receives the result of the previous one and
// may transform it.
package hooks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
)

// Key names a hook point.
type Key string

// Hook points.
const (
	DevFileChange      Key = "dev_file_change"
	DevHandler         Key = "dev_handler"
	DevManagerMessage  Key = "dev_manager_message"
	JinjaEnvInit       Key = "jinja_env_init"
	JinjaExtensions    Key = "jinja_extensions"
	Preprocess         Key = "preprocess"
	PreRender          Key = "pre_render"
	PostRender         Key = "post_render"
	PreDeploy          Key = "pre_deploy"
	DeploymentRegister Key = "deployment_register"
	RouterAdd          Key = "router_add"
	StaticDir          Key = "static_dir"
)

// Keys lists every hook point.
var Keys = []Key{
	DevFileChange, DevHandler, DevManagerMessage, JinjaEnvInit, JinjaExtensions,
	Preprocess, PreRender, PostRender, PreDeploy, DeploymentRegister, RouterAdd, StaticDir,
}

// Valid reports whether k is a known hook point.
func (k Key) Valid() bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}

// Hook is one link in a hook chain.
type Hook interface {
	// ShouldTrigger reports whether Trigger should run for this call.
	ShouldTrigger(ctx context.Context, previous any, args ...any) bool
	// Trigger returns the new result of the chain.
	Trigger(ctx context.Context, previous any, args ...any) (any, error)
}

// Func adapts a function to a Hook that always triggers.
type Func func(ctx context.Context, previous any, args ...any) (any, error)

// ShouldTrigger always returns true.
func (f Func) ShouldTrigger(context.Context, any, ...any) bool { return true }

// Trigger calls f.
func (f Func) Trigger(ctx context.Context, previous any, args ...any) (any, error) {
	return f(ctx, previous, args...)
}

// Extension declares the hooks it implements. Hooks is called once, at
// registration, so every extension gets one hook instance per hook point.
type Extension interface {
	Name() string
	Hooks() map[Key]Hook
}

type registered struct {
	extension string
	hook      Hook
}

// Bus dispatches hook chains in registration order.
type Bus struct {
	mu         sync.RWMutex
	chains     map[Key][]registered
	extensions []string
	logger     logging.Logger
}

// NewBus creates an empty bus.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		chains: make(map[Key][]registered),
		logger: logger.WithComponent("hooks"),
	}
}

// Register adds ext and its hooks. Within a hook point, hooks run in the
// order extensions were registered.
func (b *Bus) Register(ext Extension) error {
	name := ext.Name()
	hooks := ext.Hooks()

	keys := make([]Key, 0, len(hooks))
	for key := range hooks {
		if !key.Valid() {
			return errors.NewValidationError(errors.ErrCodeHookFailed,
				fmt.Sprintf("extension %s declares unknown hook %q", name, key))
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.extensions {
		if existing == name {
			return errors.NewValidationError(errors.ErrCodeHookFailed,
				fmt.Sprintf("extension %s already registered", name))
		}
	}
	b.extensions = append(b.extensions, name)
	for _, key := range keys {
		b.chains[key] = append(b.chains[key], registered{extension: name, hook: hooks[key]})
	}
	return nil
}

// Unregister removes every hook of the named extension.
func (b *Bus) Unregister(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	found := false
	for i, existing := range b.extensions {
		if existing == name {
			b.extensions = append(b.extensions[:i], b.extensions[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for key, chain := range b.chains {
		kept := chain[:0]
		for _, r := range chain {
			if r.extension != name {
				kept = append(kept, r)
			}
		}
		b.chains[key] = kept
	}
	return true
}

// Extensions returns the registered extension names in registration order.
func (b *Bus) Extensions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.extensions...)
}

// Len returns the number of hooks registered for key.
func (b *Bus) Len(key Key) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chains[key])
}

// Trigger runs the chain for key starting from previous. A failing hook
// stops the chain: the failure is logged and returned, and the result is the
// last successful one.
func (b *Bus) Trigger(ctx context.Context, key Key, previous any, args ...any) (any, error) {
	b.mu.RLock()
	chain := append([]registered(nil), b.chains[key]...)
	b.mu.RUnlock()

	result := previous
	for _, r := range chain {
		if !r.hook.ShouldTrigger(ctx, result, args...) {
			continue
		}
		next, err := callHook(ctx, r.hook, result, args...)
		if err != nil {
			wrapped := errors.WrapExtension(err, string(key), r.extension)
			b.logger.Error(ctx, err, "Hook failed", "hook", string(key), "extension", r.extension)
			return result, wrapped
		}
		result = next
	}
	return result, nil
}

func callHook(ctx context.Context, hook Hook, previous any, args ...any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.NewInternalError(errors.ErrCodeHookFailed,
				fmt.Sprintf("hook panicked: %v", p), nil).
				WithContext("stack", string(debug.Stack()))
		}
	}()
	return hook.Trigger(ctx, previous, args...)
}

type extension struct {
	name  string
	hooks map[Key]Hook
}

func (e *extension) Name() string        { return e.name }
func (e *extension) Hooks() map[Key]Hook { return e.hooks }

// NewExtension returns an Extension made of the given hooks.
func NewExtension(name string, hooks map[Key]Hook) Extension {
	return &extension{name: name, hooks: hooks}
}
