package main

import (
	"fmt"
	"log/slog"

	"github.com/rmap-protocol/rmap-go/pkg/config"
	rmaplog "github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/persistence"
	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/simtarget"
)

// simulator couples a simulated target with its optional memory image.
type simulator struct {
	target *simtarget.Target
	store  *persistence.ImageStore
	logger *slog.Logger
}

// selectNode returns the node named id, or the first configured node.
func selectNode(reg *registry.Registry, id string) (registry.TargetNode, error) {
	if id != "" {
		return reg.Target(id)
	}
	targets := reg.Targets()
	if len(targets) == 0 {
		return registry.TargetNode{}, fmt.Errorf("configuration defines no targets")
	}
	return targets[0], nil
}

func newSimulator(file *config.File, o Options, logger *slog.Logger, protoLog rmaplog.Logger) (*simulator, error) {
	node, err := selectNode(file.Registry(), o.TargetID)
	if err != nil {
		return nil, err
	}

	tgt, err := simtarget.New(simtarget.Config{
		Node:             node,
		VerifyBufferSize: o.VerifyBuffer,
		Logger:           logger,
		ProtocolLogger:   protoLog,
	})
	if err != nil {
		return nil, fmt.Errorf("create target %s: %w", node.ID, err)
	}
	sim := &simulator{target: tgt, logger: logger}

	if o.ImagePath == "" {
		return sim, nil
	}
	sim.store = persistence.NewImageStore(o.ImagePath)

	if o.Reset {
		logger.Info("discarding memory image", "path", o.ImagePath)
		if err := sim.store.Clear(); err != nil {
			return nil, fmt.Errorf("clear memory image: %w", err)
		}
		return sim, nil
	}

	img, err := sim.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load memory image: %w", err)
	}
	if img == nil {
		logger.Info("no memory image, starting zeroed", "path", o.ImagePath)
		return sim, nil
	}
	if err := tgt.Restore(img); err != nil {
		return nil, fmt.Errorf("restore memory image: %w", err)
	}
	logger.Info("memory image restored", "path", o.ImagePath, "saved", img.SavedAt)
	return sim, nil
}

// save writes the memory image when one is configured.
func (s *simulator) save() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(s.target.Image()); err != nil {
		return fmt.Errorf("save memory image: %w", err)
	}
	s.logger.Info("memory image saved", "path", s.store.Path())
	return nil
}
