package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Schema validates a vote payload for one game mode.
type Schema interface {
	Validate(raw json.RawMessage) error
}

type SchemaFunc func(raw json.RawMessage) error

func (f SchemaFunc) Validate(raw json.RawMessage) error { return f(raw) }

const DefaultMode = "default"

// SchemaRegistry maps mode identifiers to vote schemas. It is loaded once at
// startup and must carry a default entry; an unknown mode falls back to the
// default deliberately and is logged, never silently.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

func NewSchemaRegistry(def Schema) (*SchemaRegistry, error) {
	if def == nil {
		return nil, errors.New("default vote schema is required")
	}
	return &SchemaRegistry{schemas: map[string]Schema{DefaultMode: def}}, nil
}

func (r *SchemaRegistry) Register(mode string, s Schema) error {
	if mode == "" || s == nil {
		return errors.New("mode and schema are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[mode] = s
	return nil
}

// Get returns the schema for mode, falling back to the default.
func (r *SchemaRegistry) Get(mode string) Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[mode]; ok {
		return s
	}
	log.Warn().Str("module", "game").Str("mode", mode).Msg("no schema for mode, using default")
	return r.schemas[DefaultMode]
}

// DefaultSchemas builds the registry shipped with the server: a permissive
// default plus the shapes of the known quiz answer kinds.
func DefaultSchemas() *SchemaRegistry {
	reg, _ := NewSchemaRegistry(SchemaFunc(func(raw json.RawMessage) error {
		if len(raw) == 0 || string(raw) == "null" {
			return errors.New("vote payload is empty")
		}
		return nil
	}))

	_ = reg.Register("mcq", SchemaFunc(func(raw json.RawMessage) error {
		var v struct {
			Choice *int `json:"choice"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("bad mcq vote: %w", err)
		}
		if v.Choice == nil || *v.Choice < 0 {
			return errors.New("mcq vote requires a non-negative choice")
		}
		return nil
	}))

	_ = reg.Register("tf", SchemaFunc(func(raw json.RawMessage) error {
		var v struct {
			Answer *bool `json:"answer"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("bad tf vote: %w", err)
		}
		if v.Answer == nil {
			return errors.New("tf vote requires an answer")
		}
		return nil
	}))

	return reg
}
