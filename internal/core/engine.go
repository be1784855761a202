package core

import (
	"errors"
	"sync/atomic"
)

// ErrNoDataset is returned by queries issued before any dataset was published.
var ErrNoDataset = errors.New("no dataset loaded")

// Engine answers identification queries against the currently published
// dataset. Publishing swaps the whole snapshot in one atomic store, so a query
// sees either the previous or the new dataset and never a mix.
type Engine struct {
	current atomic.Pointer[Dataset]
}

// NewEngine returns an engine serving ds; ds may be nil.
func NewEngine(ds *Dataset) *Engine {
	e := &Engine{}
	if ds != nil {
		e.current.Store(ds)
	}
	return e
}

// Publish replaces the served dataset and returns the previous one.
func (e *Engine) Publish(ds *Dataset) *Dataset {
	if ds == nil {
		return e.current.Load()
	}
	return e.current.Swap(ds)
}

// Dataset returns the published dataset or nil.
func (e *Engine) Dataset() *Dataset {
	return e.current.Load()
}

// Identify runs a query against one consistent snapshot.
func (e *Engine) Identify(obs Observation, candidateIDs ...string) (Identification, error) {
	ds := e.current.Load()
	if ds == nil {
		return Identification{}, ErrNoDataset
	}
	return ds.Identify(obs, candidateIDs...)
}
