// Package rules keeps the rulesets a station can be started with.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"game-station/internal/station"
)

// ErrUnknownRuleset is returned by Lookup for unregistered names.
var ErrUnknownRuleset = errors.New("unknown ruleset")

var (
	mu        sync.RWMutex
	factories = make(map[string]station.RulesFactory)
)

// Register makes a ruleset available under name, replacing any previous registration.
func Register(name string, factory station.RulesFactory) {
	if name == "" || factory == nil {
		panic("rules: Register needs a name and a factory")
	}
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Lookup returns the factory registered under name.
func Lookup(name string) (station.RulesFactory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownRuleset, name, namesLocked())
	}
	return f, nil
}

// Names lists the registered rulesets in order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
