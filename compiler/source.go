package compiler

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"twee-kit/parser"
	"twee-kit/story"
	"twee-kit/twine1"
	"twee-kit/twine2"
)

// SourceKind è la rappresentazione di un file in ingresso
type SourceKind string

const (
	SourceTwee       SourceKind = "twee"
	SourceTwine2HTML SourceKind = "twine2"
	SourceTwine1HTML SourceKind = "twine1"
	SourceTwine2JSON SourceKind = "json"
	SourceArchive    SourceKind = "archive"
)

// DetectKind deduce il tipo di sorgente da estensione e contenuto
func DetectKind(filename string, data []byte) (SourceKind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".twee", ".tw":
		return SourceTwee, nil
	case ".json":
		return SourceTwine2JSON, nil
	}

	trimmed := bytes.TrimSpace(data)
	switch n := bytes.Count(data, []byte("<tw-storydata")); {
	case n > 1:
		return SourceArchive, nil
	case n == 1:
		return SourceTwine2HTML, nil
	}
	if bytes.Contains(data, []byte(`"storeArea"`)) || bytes.Contains(data, []byte(`"store-area"`)) {
		return SourceTwine1HTML, nil
	}
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return SourceTwine2JSON, nil
	}
	if bytes.Contains(data, []byte("::")) {
		return SourceTwee, nil
	}
	return "", fmt.Errorf("formato sorgente non riconosciuto: %s", filename)
}

// Load legge una o più storie. Il Twee viene interpretato con le regole
// dei passaggi speciali (StoryData, StoryTitle, Start).
func Load(kind SourceKind, data []byte) ([]*story.Story, story.Diagnostics, error) {
	src := string(data)

	switch kind {
	case SourceTwee:
		flat, diags, err := parser.Parse(src)
		if err != nil {
			return nil, diags, err
		}
		s, more, err := story.FromPassages(flat.Passages())
		diags = append(diags, more...)
		if err != nil {
			return nil, diags, err
		}
		return []*story.Story{s}, diags, nil

	case SourceTwine2HTML:
		s, diags, err := twine2.Parse(src)
		if err != nil {
			return nil, diags, err
		}
		return []*story.Story{s}, diags, nil

	case SourceTwine1HTML:
		s, diags, err := twine1.Parse(src)
		if err != nil {
			return nil, diags, err
		}
		return []*story.Story{s}, diags, nil

	case SourceTwine2JSON:
		s, diags, err := twine2.ParseJSON(src)
		if err != nil {
			return nil, diags, err
		}
		return []*story.Story{s}, diags, nil

	case SourceArchive:
		archive, diags, err := twine2.ParseArchive(src)
		if err != nil {
			return nil, diags, err
		}
		return archive.Stories, diags, nil
	}

	return nil, nil, fmt.Errorf("tipo sorgente sconosciuto: %s", kind)
}
