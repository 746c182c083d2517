package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/matchlog.schema.json
var matchLogSchemaJSON string

var (
	matchLogOnce   sync.Once
	matchLogSchema *jsonschema.Schema
	matchLogErr    error
)

// MatchLogSchema returns the compiled schema every match log line must
// satisfy.
func MatchLogSchema() (*jsonschema.Schema, error) {
	matchLogOnce.Do(func() {
		matchLogSchema, matchLogErr = jsonschema.CompileString("matchlog.schema.json", matchLogSchemaJSON)
	})
	return matchLogSchema, matchLogErr
}

// ValidateMatchLogLine checks one raw JSONL line against the schema.
func ValidateMatchLogLine(line []byte) error {
	s, err := MatchLogSchema()
	if err != nil {
		return fmt.Errorf("compile match log schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return s.Validate(v)
}
