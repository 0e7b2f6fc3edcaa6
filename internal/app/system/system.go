// Package system manages the lifecycle of long-running components.
package system

import (
	"context"
	"fmt"

	"github.com/waitroomxyz/api/internal/logging"
)

// Service is a named component with a start/stop lifecycle.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager starts registered services in order and stops them in reverse.
type Manager struct {
	services []Service
	log      *logging.Logger
}

// NewManager returns an empty Manager.
func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewDefault("system")
	}
	return &Manager{log: log}
}

// Register appends svc to the start order.
func (m *Manager) Register(svc Service) {
	m.services = append(m.services, svc)
}

// Start brings every registered service up. The first failure stops the
// already-started services in reverse and is returned.
func (m *Manager) Start(ctx context.Context) error {
	for i, svc := range m.services {
		m.log.WithField("service", svc.Name()).Info("starting")
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := m.services[j].Stop(ctx); stopErr != nil {
					m.log.WithError(stopErr).WithField("service", m.services[j].Name()).Error("stop failed during rollback")
				}
			}
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// Stop shuts services down in reverse registration order. All services are
// stopped; the first error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		svc := m.services[i]
		m.log.WithField("service", svc.Name()).Info("stopping")
		if err := svc.Stop(ctx); err != nil {
			m.log.WithError(err).WithField("service", svc.Name()).Error("stop failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
		}
	}
	return firstErr
}

// NoopService satisfies Service for components with no lifecycle of their
// own.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                 { return n.ServiceName }
func (n NoopService) Start(context.Context) error  { return nil }
func (n NoopService) Stop(context.Context) error   { return nil }
