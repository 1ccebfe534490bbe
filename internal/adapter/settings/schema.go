package settings

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"noelle/internal/domain"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// validate checks a candidate settings document before it is committed.
func validate(next domain.Settings) error {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.NewCompiler().Compile(schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("settings: schema: %w", schemaErr)
	}
	result := schema.Validate(map[string]any(next))
	if !result.IsValid() {
		return domain.NewDomainError("Settings.Validate", domain.ErrInvalidInput, fmt.Sprint(result.Error()))
	}
	return nil
}
