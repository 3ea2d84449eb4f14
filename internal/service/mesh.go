package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"meshgen/internal/codec"
	"meshgen/internal/domain"
	"meshgen/internal/mesh"
	"meshgen/internal/rules"
	"meshgen/internal/storage"
)

// ErrNoDevices is returned when a query selects no device
var ErrNoDevices = errors.New("no devices match the query")

var log = logrus.New()

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

const defaultWorkers = 8

// MeshService generates BGP configuration documents for devices
type MeshService struct {
	storage   *storage.Storage
	rulesPath string
	registry  atomic.Pointer[mesh.PatternRegistry]
	eventBus  *EventBus
	workers   int
}

// NewMeshService creates a mesh service and loads the rule file
func NewMeshService(st *storage.Storage, rulesPath string, eventBus *EventBus) (*MeshService, error) {
	if eventBus == nil {
		eventBus = NewEventBus()
	}
	s := &MeshService{
		storage:   st,
		rulesPath: rulesPath,
		eventBus:  eventBus,
		workers:   defaultWorkers,
	}
	if err := s.ReloadRules(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetWorkers bounds how many devices are generated concurrently
func (s *MeshService) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// ReloadRules parses the rule file into a new registry and swaps it in. On
// failure the current registry stays active.
func (s *MeshService) ReloadRules() error {
	registry, err := loadRegistry(s.rulesPath)
	if err != nil {
		s.eventBus.Publish(Event{
			Type:    EventRulesRejected,
			Payload: map[string]string{"path": s.rulesPath, "error": err.Error()},
		})
		return err
	}

	s.registry.Store(registry)
	log.WithField("path", s.rulesPath).Info("rules loaded")
	s.eventBus.Publish(Event{
		Type:    EventRulesReloaded,
		Payload: map[string]string{"path": s.rulesPath},
	})
	return nil
}

func loadRegistry(path string) (*mesh.PatternRegistry, error) {
	f, err := rules.LoadYAML(path)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	registry := mesh.NewPatternRegistry()
	if err := f.Register(registry); err != nil {
		return nil, fmt.Errorf("register rules %s: %w", path, err)
	}
	return registry, nil
}

// RefreshInventory drops cached CMDB lookups
func (s *MeshService) RefreshInventory() {
	s.storage.FlushCache()
	s.eventBus.Publish(Event{Type: EventInventoryReloaded})
}

// Devices returns the devices matching q with their neighbors
func (s *MeshService) Devices(ctx context.Context, q storage.Query) ([]*domain.Device, error) {
	devices, err := s.storage.MakeDevices(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	return devices, nil
}

// Generate runs the mesh for every device matching q. Documents keep the
// device order of the CMDB.
func (s *MeshService) Generate(ctx context.Context, q storage.Query) ([]codec.Document, error) {
	devices, err := s.Devices(ctx, q)
	if err != nil {
		return nil, err
	}

	executor := mesh.NewExecutor(s.registry.Load(), s.storage)
	docs := make([]codec.Document, len(devices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, device := range devices {
		g.Go(func() error {
			res, err := executor.ExecuteFor(gctx, device)
			if err != nil {
				return err
			}
			docs[i] = codec.NewDocument(device, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.eventBus.Publish(Event{
			Type:    EventMeshFailed,
			Payload: map[string]string{"error": err.Error()},
		})
		return nil, err
	}

	peers := 0
	for _, d := range docs {
		peers += len(d.Peers)
	}
	log.WithFields(logrus.Fields{
		"devices": len(docs),
		"peers":   peers,
	}).Info("mesh generated")
	s.eventBus.Publish(Event{
		Type:    EventMeshGenerated,
		Payload: map[string]int{"devices": len(docs), "peers": peers},
	})

	return docs, nil
}
