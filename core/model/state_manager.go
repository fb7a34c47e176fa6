package model

import (
	"sync"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators hold it by pointer in an exported field so that gob persists it.
// A nil *StateManager behaves as an unfitted model.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Metadata recorded by Fit - Public for gob encoding
	NFeatures int
	NSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted with the dimensions seen during Fit.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	if s == nil {
		return 0, 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError if the model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckPredictInput verifies that the model is fitted and X has the number of
// features seen during Fit.
func (s *StateManager) CheckPredictInput(modelName string, X interface{ Dims() (int, int) }) error {
	if err := s.RequireFitted(modelName, "Predict"); err != nil {
		return err
	}
	nFeatures, _ := s.GetDimensions()
	if _, c := X.Dims(); c != nFeatures {
		return errors.NewDimensionError(modelName+".Predict", nFeatures, c, 1)
	}
	return nil
}
