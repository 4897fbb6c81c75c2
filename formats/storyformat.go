// Package formats gestisce i formati di storia (i template dei motori
// come Harlowe o SugarCube) distribuiti come file format.js.
package formats

import (
	"encoding/json"
	"strings"

	"golang.org/x/mod/semver"

	"twee-kit/story"
)

const (
	jsonpPrefix = "window.storyFormat("
	jsonpSuffix = ");"
)

// Errori di Parse, con il testo usato dagli altri strumenti Twine
var (
	ErrMissingPrefix = story.NewError(story.KindInvalidStoryFormat,
		"ERROR: The story format data does not start with 'window.storyFormat('.", nil)
	ErrMissingSuffix = story.NewError(story.KindInvalidStoryFormat,
		"ERROR: The story format data does not end with ');'.", nil)
	ErrEmptySource = story.NewError(story.KindInvalidStoryFormat,
		"ERROR: The source of the story format is empty.", nil)
)

const invalidJSONMsg = "ERROR: The story format data is not valid JSON."

// StoryFormat è il contenuto di un file format.js
type StoryFormat struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Image       string `json:"image"`
	URL         string `json:"url"`
	License     string `json:"license"`
	Proofing    bool   `json:"proofing"`
	Source      string `json:"source"`
}

// New restituisce un formato con i valori di default
func New() *StoryFormat {
	return &StoryFormat{
		Name:    "Untitled Story Format",
		Version: "0.0.0",
	}
}

// ID identifica il formato come nome-versione
func (f *StoryFormat) ID() string {
	return strings.ToLower(f.Name) + "-" + f.Version
}

// unwrap toglie il wrapper JSONP; il prefisso viene controllato per primo
func unwrap(data string) (string, error) {
	if !strings.HasPrefix(data, jsonpPrefix) {
		return "", ErrMissingPrefix
	}
	data = data[len(jsonpPrefix):]
	if !strings.HasSuffix(data, jsonpSuffix) {
		return "", ErrMissingSuffix
	}
	return data[:len(data)-len(jsonpSuffix)], nil
}

// Parse legge un formato nella forma window.storyFormat({...});
func Parse(data string) (*StoryFormat, error) {
	payload, err := unwrap(data)
	if err != nil {
		return nil, err
	}
	return decode(payload)
}

func decode(payload string) (*StoryFormat, error) {
	if strings.TrimSpace(payload) == "null" {
		return nil, story.NewError(story.KindInvalidStoryFormat, invalidJSONMsg, nil)
	}
	f := New()
	if err := json.Unmarshal([]byte(payload), f); err != nil {
		return nil, story.NewError(story.KindInvalidStoryFormat, invalidJSONMsg, err)
	}
	return f, nil
}

// FromJSON legge il solo oggetto JSON, senza wrapper
func FromJSON(data string) (*StoryFormat, error) {
	return decode(data)
}

// ToJSON serializza il formato in JSON compatto
func (f *StoryFormat) ToJSON() (string, error) {
	b, err := story.MarshalCompact(f)
	if err != nil {
		return "", story.NewError(story.KindInvalidStoryFormat, "ERROR: Unable to serialize StoryFormat: "+err.Error(), err)
	}
	return string(b), nil
}

// Write produce il contenuto di un file format.js
func (f *StoryFormat) Write() (string, error) {
	j, err := f.ToJSON()
	if err != nil {
		return "", err
	}
	return jsonpPrefix + j + jsonpSuffix, nil
}

// Validate controlla i campi obbligatori: versione semver x.y.z e source
func (f *StoryFormat) Validate() error {
	if !isFullSemver(f.Version) {
		return story.NewError(story.KindInvalidStoryFormat,
			"ERROR: The story format version '"+f.Version+"' is not a valid semantic version.", nil)
	}
	if f.Source == "" {
		return ErrEmptySource
	}
	return nil
}

// isFullSemver accetta solo major.minor.patch, con eventuali prerelease e build
func isFullSemver(v string) bool {
	if !semver.IsValid("v" + v) {
		return false
	}
	core := v
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}
