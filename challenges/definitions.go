// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package challenges

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/project-illium/emxd/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed challenges.yaml
var defaultDefinitions []byte

// DefaultDefinitions returns the built in challenge definitions.
func DefaultDefinitions() ([]models.Challenge, error) {
	return ParseDefinitions(bytes.NewReader(defaultDefinitions))
}

// LoadDefinitions reads challenge definitions from a yaml file.
func LoadDefinitions(path string) ([]models.Challenge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseDefinitions(f)
}

// ParseDefinitions decodes a yaml list of challenges.
func ParseDefinitions(r io.Reader) ([]models.Challenge, error) {
	var defs []models.Challenge
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("parse challenge definitions: %w", err)
	}
	seen := make(map[string]bool)
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("challenge definition without an id")
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate challenge %s", d.ID)
		}
		seen[d.ID] = true
		if _, err := UpdaterFor(d.Type); err != nil {
			return nil, fmt.Errorf("challenge %s: %w", d.ID, err)
		}
		if d.Type != models.ChallengeBoolean && d.StepCount <= 0 {
			return nil, fmt.Errorf("challenge %s: %s challenges need a step count", d.ID, d.Type)
		}
		if len(d.Events) == 0 {
			return nil, fmt.Errorf("challenge %s listens for no events", d.ID)
		}
	}
	return defs, nil
}

// Seed writes the definitions to the challenges table, replacing any
// stored definition with the same id.
func Seed(db *gorm.DB, defs []models.Challenge) error {
	if len(defs) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&defs).Error
}

// NewBusFromDefinitions returns a bus with a manager for every
// definition, subscribed to the definition's events.
func NewBusFromDefinitions(defs []models.Challenge, queueSize int) (*Bus, error) {
	b := NewBus(queueSize)
	for _, d := range defs {
		u, err := UpdaterFor(d.Type)
		if err != nil {
			return nil, err
		}
		m := NewManager(d.ID, u)
		for _, typ := range d.Events {
			b.Register(EventType(typ), m)
		}
	}
	return b, nil
}
