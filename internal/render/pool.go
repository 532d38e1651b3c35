package render

import (
	"math/rand/v2"
	"sync"
)

// EnvFactory builds a fresh environment for locale.
type EnvFactory func(locale string) (*Env, error)

// Pool holds size environments per locale, created on first use. Get picks
// uniformly at random among a locale's environments.
type Pool struct {
	mu      sync.Mutex
	size    int
	factory EnvFactory
	envs    map[string][]*Env
}

// NewPool creates a pool of size environments per locale.
func NewPool(size int, factory EnvFactory) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size, factory: factory, envs: make(map[string][]*Env)}
}

// Size returns the number of environments per locale.
func (p *Pool) Size() int { return p.size }

// Get returns an environment for locale.
func (p *Pool) Get(locale string) (*Env, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	envs, ok := p.envs[locale]
	if !ok {
		envs = make([]*Env, 0, p.size)
		for i := 0; i < p.size; i++ {
			env, err := p.factory(locale)
			if err != nil {
				return nil, err
			}
			envs = append(envs, env)
		}
		p.envs[locale] = envs
	}
	return envs[rand.IntN(len(envs))], nil
}

// Locales returns the locales with live environments.
func (p *Pool) Locales() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envs))
	for locale := range p.envs {
		out = append(out, locale)
	}
	return out
}

// Reset drops every environment; they are rebuilt on demand.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = make(map[string][]*Env)
}
