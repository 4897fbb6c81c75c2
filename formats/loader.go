package formats

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/multierr"
)

//go:embed schema.json
var schemaBytes []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaBytes)

// CheckSchema verifica il payload JSON di un format.js contro lo schema
func CheckSchema(payload []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("validazione schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema non rispettato: %s", strings.Join(msgs, "; "))
}

// LoadFile legge e valida un singolo format.js
func LoadFile(path string) (*StoryFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("errore lettura %s: %w", path, err)
	}

	payload, err := unwrap(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := CheckSchema([]byte(payload)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LoadDir registra tutti i formati trovati in dir/*/format.js.
// Un file non valido non blocca gli altri: gli errori vengono accumulati.
func (r *Registry) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*", "format.js"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	loaded := 0
	var errs error
	for _, path := range paths {
		f, err := LoadFile(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := r.Register(f); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		loaded++
	}
	return loaded, errs
}
