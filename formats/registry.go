package formats

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"twee-kit/story"
)

// Registry mantiene i formati caricati, raggruppati per nome.
// Per ogni nome le versioni sono ordinate dalla più recente.
type Registry struct {
	mu      sync.RWMutex
	formats map[string][]*StoryFormat
}

// NewRegistry crea un registro vuoto
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string][]*StoryFormat)}
}

// Register aggiunge un formato; la stessa versione viene sostituita
func (r *Registry) Register(f *StoryFormat) error {
	if err := f.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(f.Name)
	versions := r.formats[key]
	for i, existing := range versions {
		if semver.Compare("v"+existing.Version, "v"+f.Version) == 0 {
			versions[i] = f
			return nil
		}
	}
	versions = append(versions, f)
	sort.SliceStable(versions, func(i, j int) bool {
		return semver.Compare("v"+versions[i].Version, "v"+versions[j].Version) > 0
	})
	r.formats[key] = versions
	return nil
}

// Lookup trova un formato a partire da "nome", "nome-3", "nome-3.3" o
// "nome-3.3.8". Tra più versioni compatibili vince la più recente.
func (r *Registry) Lookup(id string) (*StoryFormat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(id))
	if versions, ok := r.formats[key]; ok && len(versions) > 0 {
		return versions[0], nil
	}

	if i := strings.LastIndex(key, "-"); i > 0 && i+1 < len(key) {
		name, want := key[:i], key[i+1:]
		for _, f := range r.formats[name] {
			if versionMatches(f.Version, want) {
				return f, nil
			}
		}
	}

	return nil, story.NewError(story.KindInvalidStoryFormat,
		fmt.Sprintf("ERROR: The story format '%s' is not available.", id), nil)
}

// versionMatches confronta solo le componenti indicate in want
func versionMatches(have, want string) bool {
	h, w := "v"+have, "v"+want
	if !semver.IsValid(w) {
		return false
	}
	switch strings.Count(strings.SplitN(want, "-", 2)[0], ".") {
	case 0:
		return semver.Major(h) == semver.Major(w)
	case 1:
		return semver.MajorMinor(h) == semver.MajorMinor(w)
	default:
		return semver.Compare(h, w) == 0
	}
}

// Available restituisce tutti i formati ordinati per nome e versione
func (r *Registry) Available() []*StoryFormat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*StoryFormat
	for _, name := range names {
		out = append(out, r.formats[name]...)
	}
	return out
}

// Names restituisce i nomi registrati in ordine alfabetico
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has verifica se un identificativo è risolvibile
func (r *Registry) Has(id string) bool {
	_, err := r.Lookup(id)
	return err == nil
}

// Registro di default usato dal compilatore quando non ne riceve uno
var defaultRegistry = NewRegistry()

// Default restituisce il registro globale
func Default() *Registry {
	return defaultRegistry
}

// RegisterFormat registra un formato nel registro globale
func RegisterFormat(f *StoryFormat) error {
	return defaultRegistry.Register(f)
}

// GetRegisteredFormat restituisce il formato o nil
func GetRegisteredFormat(id string) *StoryFormat {
	f, err := defaultRegistry.Lookup(id)
	if err != nil {
		return nil
	}
	return f
}

// GetAvailableFormats restituisce i nomi dei formati registrati
func GetAvailableFormats() []string {
	return defaultRegistry.Names()
}

// IsFormatRegistered verifica se un formato è registrato
func IsFormatRegistered(id string) bool {
	return defaultRegistry.Has(id)
}
