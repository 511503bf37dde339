package output

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/document.schema.json
var documentSchema []byte

// DocumentSchema returns the JSON schema of exported documents.
func DocumentSchema() []byte {
	return append([]byte(nil), documentSchema...)
}

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
})

// ValidationError lists the schema violations of a document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document does not match schema: %s", strings.Join(e.Problems, "; "))
}

// Validate checks an exported mapping against the document schema.
func Validate(m map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("loading document schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(m))
	if err != nil {
		return fmt.Errorf("validating document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, re := range result.Errors() {
		verr.Problems = append(verr.Problems, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
	}
	return verr
}

// DecodeDocuments reads JSON or YAML output of the structured formatters:
// a single document or a list of them. Each document is returned in
// canonical form.
func DecodeDocuments(data []byte) ([]map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	var items []any
	switch v := raw.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	case nil:
		return nil, errors.New("decoding document: empty input")
	default:
		return nil, fmt.Errorf("decoding document: unexpected top-level %T", raw)
	}

	docs := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decoding document %d: not an object", i)
		}
		c, err := Canonical(m)
		if err != nil {
			return nil, fmt.Errorf("decoding document %d: %w", i, err)
		}
		docs = append(docs, c)
	}
	return docs, nil
}
