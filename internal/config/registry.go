package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/goalhorn/pkg/capture"
	"github.com/MrWong99/goalhorn/pkg/recognize"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps frame source and recognizer names to their constructor
// functions. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	capture     map[string]func(CaptureConfig) (capture.Source, error)
	recognition map[string]func(RecognitionConfig) (recognize.Recognizer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		capture:     make(map[string]func(CaptureConfig) (capture.Source, error)),
		recognition: make(map[string]func(RecognitionConfig) (recognize.Recognizer, error)),
	}
}

// RegisterCapture registers a frame source factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterCapture(name string, factory func(CaptureConfig) (capture.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// RegisterRecognizer registers a recognizer factory under name.
func (r *Registry) RegisterRecognizer(name string, factory func(RecognitionConfig) (recognize.Recognizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognition[name] = factory
}

// CreateCapture instantiates the frame source registered under cfg.Source.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateCapture(cfg CaptureConfig) (capture.Source, error) {
	r.mu.RLock()
	factory, ok := r.capture[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrBackendNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// CreateRecognizer instantiates the recognizer registered under cfg.Engine.
func (r *Registry) CreateRecognizer(cfg RecognitionConfig) (recognize.Recognizer, error) {
	r.mu.RLock()
	factory, ok := r.recognition[cfg.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognition/%q", ErrBackendNotRegistered, cfg.Engine)
	}
	return factory(cfg)
}
