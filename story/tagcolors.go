package story

import (
	"fmt"
	"strings"
)

// TagColors associa un colore a ciascun tag, mantenendo l'ordine di inserimento
type TagColors struct {
	names  []string
	colors map[string]string
}

// NewTagColors crea una mappa vuota
func NewTagColors() *TagColors {
	return &TagColors{colors: make(map[string]string)}
}

// Len restituisce il numero di tag colorati
func (tc *TagColors) Len() int {
	if tc == nil {
		return 0
	}
	return len(tc.names)
}

// Set imposta (o sostituisce) il colore di un tag
func (tc *TagColors) Set(tag, color string) {
	if tc.colors == nil {
		tc.colors = make(map[string]string)
	}
	if _, ok := tc.colors[tag]; !ok {
		tc.names = append(tc.names, tag)
	}
	tc.colors[tag] = color
}

// Has verifica se il tag ha un colore
func (tc *TagColors) Has(tag string) bool {
	_, ok := tc.Color(tag)
	return ok
}

// Color restituisce il colore del tag
func (tc *TagColors) Color(tag string) (string, bool) {
	if tc == nil || tc.colors == nil {
		return "", false
	}
	c, ok := tc.colors[tag]
	return c, ok
}

// Remove restituisce false se il tag non era presente
func (tc *TagColors) Remove(tag string) bool {
	if !tc.Has(tag) {
		return false
	}
	delete(tc.colors, tag)
	for i, n := range tc.names {
		if n == tag {
			tc.names = append(tc.names[:i], tc.names[i+1:]...)
			break
		}
	}
	return true
}

// Clear svuota la mappa
func (tc *TagColors) Clear() {
	tc.names = nil
	tc.colors = make(map[string]string)
}

// Names restituisce i tag in ordine di inserimento
func (tc *TagColors) Names() []string {
	if tc == nil {
		return nil
	}
	out := make([]string, len(tc.names))
	copy(out, tc.names)
	return out
}

// ToTwine2HTML genera un elemento <tw-tag> per riga
func (tc *TagColors) ToTwine2HTML() string {
	var sb strings.Builder
	for _, name := range tc.Names() {
		fmt.Fprintf(&sb, "<tw-tag name=\"%s\" color=\"%s\" />\n", name, tc.colors[name])
	}
	return sb.String()
}

func (tc *TagColors) toObject() *Object {
	obj := NewObject()
	for _, name := range tc.Names() {
		obj.Set(name, String(tc.colors[name]))
	}
	return obj
}

// String restituisce il JSON compatto
func (tc *TagColors) String() string {
	b, err := tc.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (tc *TagColors) MarshalJSON() ([]byte, error) {
	return tc.toObject().MarshalJSON()
}

func (tc *TagColors) UnmarshalJSON(data []byte) error {
	obj, err := ParseObject(data)
	if err != nil {
		return err
	}
	parsed, err := tagColorsFromObject(obj)
	if err != nil {
		return err
	}
	*tc = *parsed
	return nil
}

// tagColorsFromObject accetta solo coppie stringa → stringa
func tagColorsFromObject(obj *Object) (*TagColors, error) {
	tc := NewTagColors()
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		s, ok := v.(String)
		if !ok {
			return nil, fmt.Errorf("tag color for %q is not a string", k)
		}
		tc.Set(k, string(s))
	}
	return tc, nil
}
