package main

import (
	"fmt"
	"os"
	"time"

	"github.com/reglet-dev/scriptmeasure"
	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/infrastructure/parser"
)

const defaultUpdateInterval = time.Second

// loadSkin reads, parses and validates the skin at path.
func loadSkin(path string) (*entities.Skin, error) {
	p, err := parser.ParserFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skin: %w", err)
	}
	skin, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := scriptmeasure.ValidateSkin(skin); err != nil {
		return nil, err
	}
	if skin.UpdateInterval <= 0 {
		skin.UpdateInterval = entities.Duration(defaultUpdateInterval)
	}
	return skin, nil
}

// bridgeOptions maps the skin's bridge section onto bridge options.
func bridgeOptions(b entities.SkinBridge) ([]entities.BridgeOption, error) {
	var opts []entities.BridgeOption
	if b.Engine != "" {
		opts = append(opts, entities.WithEngine(b.Engine))
	}
	if b.CallErrorLevel != "" {
		level, err := entities.ParseCallErrorLevel(b.CallErrorLevel)
		if err != nil {
			return nil, fmt.Errorf("bridge.call_error_level: %w", err)
		}
		opts = append(opts, entities.WithDefaultCallErrorLevel(level))
	}
	opts = append(opts, entities.WithSharedContext(b.SharedContext))
	return opts, nil
}
