package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"agent-chat/pkg/agent"
	"agent-chat/pkg/logger"
	"agent-chat/pkg/swapform"
	"agent-chat/pkg/types"
	"agent-chat/pkg/wallet"
)

// ErrWalletRequired is returned when the selected agent needs a connected
// wallet and none is available
var ErrWalletRequired = errors.New("this agent requires a connected wallet")

// BackendFactory builds the backend for an agent endpoint
type BackendFactory func(endpoint string) (Backend, error)

// Recorder is notified after every successful exchange
type Recorder interface {
	Touch(agentID string, messages []types.Message) error
}

// SessionConfig wires a Session
type SessionConfig struct {
	Registry   *agent.Registry
	Wallet     wallet.Wallet
	NewBackend BackendFactory
	Recorder   Recorder
	Controller ControllerConfig
	// Router and Native are passed to swap forms
	Router string
	Native string
}

// Session ties the selected agent, its backend and the transcript
// controller together
type Session struct {
	mu         sync.Mutex
	registry   *agent.Registry
	newBackend BackendFactory
	recorder   Recorder
	router     string
	native     string
	selected   agent.Descriptor
	ctrl       *Controller
	log        *slog.Logger
}

// NewSession creates a session bound to the registry's default agent. History
// is not fetched until Load or SelectAgent.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("agent registry is required")
	}
	if cfg.NewBackend == nil {
		return nil, fmt.Errorf("backend factory is required")
	}

	s := &Session{
		registry:   cfg.Registry,
		newBackend: cfg.NewBackend,
		recorder:   cfg.Recorder,
		router:     cfg.Router,
		native:     cfg.Native,
		ctrl:       NewController(cfg.Wallet, cfg.Controller),
		log:        logger.Named("session"),
	}
	if err := s.bind(cfg.Registry.Default()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) bind(desc agent.Descriptor) error {
	backend, err := s.newBackend(desc.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create backend for %s: %w", desc.ID, err)
	}

	s.mu.Lock()
	s.selected = desc
	s.mu.Unlock()

	s.ctrl.SetBackend(backend)
	s.log.Info("agent selected", "agent", desc.ID, "endpoint", desc.Endpoint)
	return nil
}

// Controller returns the transcript controller
func (s *Session) Controller() *Controller { return s.ctrl }

// Registry returns the agent registry
func (s *Session) Registry() *agent.Registry { return s.registry }

// Selected returns the current agent
func (s *Session) Selected() agent.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectAgent switches to agent id, discarding any pending swap, and loads
// that agent's history
func (s *Session) SelectAgent(ctx context.Context, id string) error {
	desc, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if err := s.bind(desc); err != nil {
		return err
	}
	return s.ctrl.Load(ctx)
}

// Load fetches the selected agent's history
func (s *Session) Load(ctx context.Context) error {
	return s.ctrl.Load(ctx)
}

// SubmitMessage sends text to the selected agent
func (s *Session) SubmitMessage(ctx context.Context, text string) error {
	desc := s.Selected()
	if desc.RequiresConnectedWallet && !s.ctrl.Wallet().Connected() {
		return ErrWalletRequired
	}

	if err := s.ctrl.SubmitMessage(ctx, text); err != nil {
		return err
	}

	if s.recorder != nil {
		if err := s.recorder.Touch(desc.ID, s.ctrl.Messages()); err != nil {
			s.log.Warn("recording chat failed", "agent", desc.ID, "error", err)
		}
	}
	return nil
}

// NewForm builds the swap form for payload, submitting through the
// controller
func (s *Session) NewForm(payload types.SwapPayload, active bool) *swapform.Form {
	return swapform.New(payload, active, swapform.Deps{
		Wallet:  s.ctrl.Wallet(),
		Source:  s.ctrl.Backend(),
		Intents: s.ctrl,
		Router:  s.router,
		Native:  s.native,
	})
}
