package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/locknlabs/listen/pkg/provider/classify"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	transcriber map[string]func(ProviderEntry) (transcribe.Provider, error)
	classifier  map[string]func(ProviderEntry) (classify.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcriber: make(map[string]func(ProviderEntry) (transcribe.Provider, error)),
		classifier:  make(map[string]func(ProviderEntry) (classify.Provider, error)),
	}
}

// RegisterTranscriber registers a transcription provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscriber(name string, factory func(ProviderEntry) (transcribe.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// RegisterClassifier registers a classification provider factory under name.
func (r *Registry) RegisterClassifier(name string, factory func(ProviderEntry) (classify.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifier[name] = factory
}

// CreateTranscriber instantiates the transcription provider named in entry.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcriber %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateClassifier instantiates the classification provider named in entry.
func (r *Registry) CreateClassifier(entry ProviderEntry) (classify.Provider, error) {
	r.mu.RLock()
	factory, ok := r.classifier[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: classifier %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
