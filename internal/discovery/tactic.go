package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for the discovery package.
var (
	// ErrTacticAlreadyRegistered is returned when registering a duplicate tactic.
	ErrTacticAlreadyRegistered = errors.New("tactic already registered")

	// ErrTacticNotFound is returned when a configured tactic is unknown.
	ErrTacticNotFound = errors.New("tactic not found")
)

// OutcomeKind tells the engine what to do after a tactic ran.
type OutcomeKind int

const (
	// Continue falls through to the next tactic.
	Continue OutcomeKind = iota
	// Found stops the cascade with a non-empty result.
	Found
	// Halt stops the cascade with whatever ISBNs the tactic has, possibly none.
	Halt
)

func (k OutcomeKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Found:
		return "found"
	case Halt:
		return "halt"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one tactic on one file.
type Outcome struct {
	Kind  OutcomeKind
	ISBNs []string
}

// found wraps isbns as Found, or Continue when there are none.
func found(isbns []string) Outcome {
	if len(isbns) == 0 {
		return Outcome{Kind: Continue}
	}
	return Outcome{Kind: Found, ISBNs: isbns}
}

// halt stops the cascade, reporting isbns as Found when there are any.
func halt(isbns []string) Outcome {
	if len(isbns) > 0 {
		return Outcome{Kind: Found, ISBNs: isbns}
	}
	return Outcome{Kind: Halt}
}

// Tactic is one stage of the discovery cascade.
type Tactic interface {
	Name() string
	Attempt(ctx context.Context, s *Scan) Outcome
}

// Tactic names in their default order.
const (
	TacticFilename = "filename"
	TacticMIME     = "mime"
	TacticMetadata = "metadata"
	TacticArchive  = "archive"
	TacticConvert  = "convert"
	TacticOCR      = "ocr"
)

// DefaultTactics is the cheapest-first cascade.
func DefaultTactics() []string {
	return []string{
		TacticFilename,
		TacticMIME,
		TacticMetadata,
		TacticArchive,
		TacticConvert,
		TacticOCR,
	}
}

// Registry holds the available tactics by name.
type Registry struct {
	mu      sync.RWMutex
	tactics map[string]Tactic
	order   []string // Maintains registration order
}

// NewRegistry creates an empty tactic registry.
func NewRegistry() *Registry {
	return &Registry{
		tactics: make(map[string]Tactic),
		order:   make([]string, 0),
	}
}

// Register adds a tactic to the registry.
// Returns an error if a tactic with the same name is already registered.
func (r *Registry) Register(t Tactic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tactics[name]; exists {
		return fmt.Errorf("%w: %s", ErrTacticAlreadyRegistered, name)
	}

	r.tactics[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns a tactic by name.
func (r *Registry) Get(name string) (Tactic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tactics[name]
	return t, ok
}

// Names returns all tactic names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Select returns the named tactics in the given order. Duplicates are
// rejected so a cascade never runs the same stage twice.
func (r *Registry) Select(names []string) ([]Tactic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(names))
	selected := make([]Tactic, 0, len(names))
	for _, name := range names {
		t, ok := r.tactics[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrTacticNotFound, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q listed twice", ErrTacticAlreadyRegistered, name)
		}
		seen[name] = true
		selected = append(selected, t)
	}
	return selected, nil
}
