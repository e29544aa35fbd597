package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StyleProfile is the reference ink signature of one font class
type StyleProfile struct {
	Class     string     `json:"class"`
	Target    Features   `json:"target"`
	Tolerance Features   `json:"tolerance"`
	Weights   SubWeights `json:"weights"`
}

// Features holds one value per compared dimension
type Features struct {
	InkDensity float64 `json:"inkDensity"`
	Slope      float64 `json:"slope"`
	Spread     float64 `json:"spread"`
	Continuity float64 `json:"continuity"`
}

// SubWeights combine sub-scores into the composite
type SubWeights struct {
	Shape   float64 `json:"shape"`
	Slope   float64 `json:"slope"`
	Scale   float64 `json:"scale"`
	Fluency float64 `json:"fluency"`
}

var (
	defaultTolerance = Features{InkDensity: 0.06, Slope: 8, Spread: 0.08, Continuity: 0.2}
	defaultWeights   = SubWeights{Shape: 0.35, Slope: 0.2, Scale: 0.2, Fluency: 0.25}

	builtinTargets = map[string]Features{
		"dancing":  {InkDensity: 0.09, Slope: -3, Spread: 0.16, Continuity: 0.82},
		"pacifico": {InkDensity: 0.14, Slope: -2, Spread: 0.18, Continuity: 0.86},
		"caveat":   {InkDensity: 0.07, Slope: -4, Spread: 0.14, Continuity: 0.74},
		"indie":    {InkDensity: 0.08, Slope: 1, Spread: 0.20, Continuity: 0.70},
		"shadows":  {InkDensity: 0.05, Slope: 0, Spread: 0.15, Continuity: 0.66},
	}
	genericTarget = Features{InkDensity: 0.08, Slope: 0, Spread: 0.16, Continuity: 0.75}
)

// DefaultProfile returns the built-in profile for class
func DefaultProfile(class string) StyleProfile {
	target, ok := builtinTargets[class]
	if !ok {
		target = genericTarget
	}
	return StyleProfile{
		Class:     class,
		Target:    target,
		Tolerance: defaultTolerance,
		Weights:   defaultWeights,
	}
}

// ProfileStore loads per-class profiles from <dir>/<class>.json, falling
// back to the built-in defaults. Loaded profiles are cached.
type ProfileStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]StyleProfile
}

// NewProfileStore creates a new profile store
func NewProfileStore(dir string) *ProfileStore {
	return &ProfileStore{dir: dir, cache: make(map[string]StyleProfile)}
}

// LoadProfile returns the profile for class
func (s *ProfileStore) LoadProfile(class string) (StyleProfile, error) {
	s.mu.RLock()
	p, ok := s.cache[class]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := s.read(class)
	if err != nil {
		return StyleProfile{}, err
	}

	s.mu.Lock()
	s.cache[class] = p
	s.mu.Unlock()
	return p, nil
}

func (s *ProfileStore) read(class string) (StyleProfile, error) {
	if s.dir == "" || class == "" || filepath.Base(class) != class {
		return DefaultProfile(class), nil
	}

	file, err := os.Open(filepath.Join(s.dir, class+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultProfile(class), nil
	}
	if err != nil {
		return StyleProfile{}, fmt.Errorf("failed to open profile file: %w", err)
	}
	defer file.Close()

	// Start from the defaults so a partial file only overrides what it sets
	p := DefaultProfile(class)
	if err := json.NewDecoder(file).Decode(&p); err != nil {
		return StyleProfile{}, fmt.Errorf("failed to decode profile %s: %w", class, err)
	}
	p.Class = class
	return p, nil
}
