// Package svc wires the daemon's components together. One ServiceContext is
// created per process and shared by every handler.
package svc

import (
	"errors"

	"github.com/deskhand/deskhand/internal/coordinator"
	"github.com/deskhand/deskhand/internal/defaults"
	"github.com/deskhand/deskhand/internal/events"
	"github.com/deskhand/deskhand/internal/knowledge"
	"github.com/deskhand/deskhand/internal/local"
	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/platform"
	"github.com/deskhand/deskhand/internal/realtime"
	"github.com/deskhand/deskhand/internal/state"
	"github.com/deskhand/deskhand/internal/suggest"
	"github.com/deskhand/deskhand/internal/types"
)

// ServiceContext owns the shared components: the state store, the event bus,
// the knowledge resolver, the suggestion engine, the coordinator and the
// realtime hub.
type ServiceContext struct {
	Settings    *local.Settings
	States      *state.Store
	Bus         *events.Bus
	Knowledge   *knowledge.Store
	Engine      *suggest.Engine
	Coordinator *coordinator.Coordinator
	Hub         *realtime.Hub
	Selectors   *platform.SelectorStore
	Registry    *platform.Registry
	Refresher   *knowledge.Refresher
}

// NewServiceContext builds the full component graph. A missing database or
// OpenAI key degrades the relevant feature instead of failing startup.
func NewServiceContext(settings *local.Settings) (*ServiceContext, error) {
	dataDir, err := defaults.EnsureDataDir()
	if err != nil {
		return nil, err
	}

	dbPath, err := defaults.DatabasePath()
	if err != nil {
		return nil, err
	}
	states, err := state.Open(dbPath)
	if err != nil {
		if !errors.Is(err, state.ErrStorageUnavailable) {
			return nil, err
		}
		logging.Warnf("state store degraded to memory-only: %v", err)
	}

	bus := events.NewBus()
	ks := knowledge.New(states, settings.FAQURL, settings.TrainingURL)

	var engineOpts []suggest.Option
	if gen := suggest.NewOpenAIGenerator(settings.OpenAIKey, settings.OpenAIModel); gen != nil {
		engineOpts = append(engineOpts, suggest.WithGenerator(gen))
	} else {
		logging.Warn("no OpenAI key configured, LLM escalation disabled")
	}
	engine := suggest.New(ks, engineOpts...)

	registry := platform.NewRegistry()
	coord := coordinator.New(states, bus, ks, registry,
		coordinator.WithDefaultLanguage(types.Language(settings.DefaultLanguage)))

	hub := realtime.NewHub()
	hub.Attach(bus)

	selectors, err := platform.NewSelectorStore(dataDir)
	if err != nil {
		return nil, err
	}
	if err := selectors.Watch(); err != nil {
		logging.Warnf("selector hot reload disabled: %v", err)
	}

	refresher, err := knowledge.NewRefresher(ks, "@every 5m")
	if err != nil {
		return nil, err
	}

	return &ServiceContext{
		Settings:    settings,
		States:      states,
		Bus:         bus,
		Knowledge:   ks,
		Engine:      engine,
		Coordinator: coord,
		Hub:         hub,
		Selectors:   selectors,
		Registry:    registry,
		Refresher:   refresher,
	}, nil
}

// Close tears the component graph down in reverse dependency order.
func (s *ServiceContext) Close() {
	if s.Refresher != nil {
		s.Refresher.Stop()
	}
	if s.Selectors != nil {
		s.Selectors.Close()
	}
	if s.Coordinator != nil {
		s.Coordinator.Stop()
	}
	if s.Hub != nil {
		s.Hub.Close()
	}
	if s.Bus != nil {
		s.Bus.Close()
	}
	if s.States != nil {
		s.States.Close()
	}
}
