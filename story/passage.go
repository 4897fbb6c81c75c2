package story

import (
	"fmt"
	"strings"
)

// Passage rappresenta un singolo passaggio Twine
type Passage struct {
	Name     string
	Text     string
	tags     []string
	metadata *Object
}

// NewPassage crea un passaggio senza tag e senza metadati
func NewPassage(name, text string, tags ...string) *Passage {
	p := &Passage{
		Name:     name,
		Text:     text,
		metadata: NewObject(),
	}
	p.SetTags(tags...)
	return p
}

// Tags restituisce i tag in ordine di inserimento
func (p *Passage) Tags() []string {
	out := make([]string, len(p.tags))
	copy(out, p.tags)
	return out
}

// SetTags sostituisce l'insieme dei tag, i duplicati vengono scartati
func (p *Passage) SetTags(tags ...string) {
	p.tags = nil
	for _, t := range tags {
		p.AddTag(t)
	}
}

// AddTag restituisce true solo se il tag non era già presente
func (p *Passage) AddTag(tag string) bool {
	if p.HasTag(tag) {
		return false
	}
	p.tags = append(p.tags, tag)
	return true
}

// RemoveTag restituisce true solo se il tag è stato effettivamente rimosso
func (p *Passage) RemoveTag(tag string) bool {
	for i, t := range p.tags {
		if t == tag {
			p.tags = append(p.tags[:i], p.tags[i+1:]...)
			return true
		}
	}
	return false
}

// HasTag verifica la presenza di un tag
func (p *Passage) HasTag(tag string) bool {
	for _, t := range p.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Metadata restituisce la mappa dei metadati (mai nil)
func (p *Passage) Metadata() *Object {
	if p.metadata == nil {
		p.metadata = NewObject()
	}
	return p.metadata
}

// SetMetadataObject sostituisce tutti i metadati
func (p *Passage) SetMetadataObject(obj *Object) {
	if obj == nil {
		obj = NewObject()
	}
	p.metadata = obj
}

// AddMetadata inserisce solo se la chiave non esiste, senza sovrascrivere
func (p *Passage) AddMetadata(key string, v Value) bool {
	return p.Metadata().Add(key, v)
}

// SetMetadata inserisce o sovrascrive
func (p *Passage) SetMetadata(key string, v Value) {
	p.Metadata().Set(key, v)
}

// GetMetadata fallisce con ErrKeyNotFound se la chiave manca
func (p *Passage) GetMetadata(key string) (Value, error) {
	v, ok := p.Metadata().Get(key)
	if !ok {
		return nil, NewError(KindKeyNotFound,
			fmt.Sprintf("ERROR: The given key '%s' was not present in the metadata.", key), nil)
	}
	return v, nil
}

// HasMetadata verifica la presenza di una chiave
func (p *Passage) HasMetadata(key string) bool {
	return p.Metadata().Has(key)
}

// RemoveMetadata rimuove una chiave
func (p *Passage) RemoveMetadata(key string) bool {
	return p.Metadata().Delete(key)
}

// nameEscaper protegge i delimitatori dell'intestazione Twee nel nome
var nameEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`)

// ToTwee restituisce l'intestazione e il corpo in formato Twee,
// senza newline finale.
func (p *Passage) ToTwee() (string, error) {
	if p.Name == "" {
		return "", ErrEmptyName
	}

	var sb strings.Builder
	sb.WriteString(":: ")
	sb.WriteString(nameEscaper.Replace(p.Name))

	if len(p.tags) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(p.tags, " "))
		sb.WriteString("]")
	}

	if p.Metadata().Len() > 0 {
		meta, err := MarshalCompact(p.metadata)
		if err != nil {
			return "", fmt.Errorf("metadata del passaggio %q: %w", p.Name, err)
		}
		sb.WriteString(" ")
		sb.Write(meta)
	}

	sb.WriteString("\n")
	sb.WriteString(p.Text)
	return sb.String(), nil
}

// passageJSON fissa l'ordine delle chiavi: name, tags, metadata, text
type passageJSON struct {
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Metadata *Object  `json:"metadata"`
	Text     string   `json:"text"`
}

func (p *Passage) toJSONShape() passageJSON {
	tags := p.Tags()
	if tags == nil {
		tags = []string{}
	}
	return passageJSON{
		Name:     p.Name,
		Tags:     tags,
		Metadata: p.Metadata(),
		Text:     p.Text,
	}
}

// ToJSON restituisce l'oggetto JSON compatto del passaggio
func (p *Passage) ToJSON() (string, error) {
	if p.Name == "" {
		return "", ErrEmptyName
	}
	b, err := MarshalCompact(p.toJSONShape())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MarshalJSON usa la stessa forma di ToJSON
func (p *Passage) MarshalJSON() ([]byte, error) {
	return MarshalCompact(p.toJSONShape())
}

// ToTwine2HTML restituisce l'elemento <tw-passagedata>.
// Gli attributi non vengono sottoposti a escape.
func (p *Passage) ToTwine2HTML(pid int) (string, error) {
	if p.Name == "" {
		return "", ErrEmptyName
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<tw-passagedata pid="%d" name="%s"`, pid, p.Name)
	fmt.Fprintf(&sb, ` tags="%s"`, strings.Join(p.tags, " "))

	if v, ok := p.Metadata().Get("position"); ok {
		fmt.Fprintf(&sb, ` position="%s"`, Text(v))
	}
	if v, ok := p.Metadata().Get("size"); ok {
		fmt.Fprintf(&sb, ` size="%s"`, Text(v))
	}

	sb.WriteString(">")
	sb.WriteString(p.Text)
	sb.WriteString("</tw-passagedata>")
	return sb.String(), nil
}

// ToTwine1HTML restituisce il <div tiddler> di Twine 1
func (p *Passage) ToTwine1HTML() (string, error) {
	if p.Name == "" {
		return "", ErrEmptyName
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<div tiddler="%s"`, p.Name)
	fmt.Fprintf(&sb, ` tags="%s"`, strings.Join(p.tags, " "))
	sb.WriteString(` modifier="extwee"`)

	if v, ok := p.Metadata().Get("position"); ok {
		fmt.Fprintf(&sb, ` twine-position="%s"`, Text(v))
	} else {
		sb.WriteString(` twine-position="10,10"`)
	}

	sb.WriteString(">")
	sb.WriteString(p.Text)
	sb.WriteString("</div>")
	return sb.String(), nil
}
