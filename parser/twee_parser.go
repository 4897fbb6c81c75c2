package parser

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"twee-kit/story"
)

// TweeParser gestisce il parsing dei file .twee
type TweeParser struct {
	filepath string
}

// NewTweeParser crea un nuovo parser
func NewTweeParser(filepath string) *TweeParser {
	return &TweeParser{filepath: filepath}
}

// Parse legge e parsa il file .twee
func (tp *TweeParser) Parse() (*story.Story, story.Diagnostics, error) {
	data, err := os.ReadFile(tp.filepath)
	if err != nil {
		return nil, nil, fmt.Errorf("errore apertura file: %w", err)
	}
	return Parse(string(data))
}

// Parse trasforma un documento Twee 3 in una storia con una lista piatta
// di passaggi. StoryData, StoryTitle e Start restano passaggi normali:
// per interpretarli usare story.FromPassages.
//
// Il documento viene letto byte per byte; il testo prima del primo "::"
// viene ignorato purché non contenga ':'.
func Parse(src string) (*story.Story, story.Diagnostics, error) {
	var diags story.Diagnostics
	b := []byte(src)

	// Serve almeno un ':' seguito da altro contenuto
	first := bytes.IndexByte(b, ':')
	if first == -1 || first+1 >= len(b) {
		return nil, diags, story.ErrNoPassages
	}

	s := story.New()

	// Il primo ':' del documento deve aprire un "::", altrimenti
	// nessun passaggio viene riconosciuto
	if b[first+1] != ':' {
		return s, diags, nil
	}

	pos := first + 2
	if pos >= len(b) {
		return nil, diags, story.ErrNoPassages
	}

	for pos < len(b) {
		var p *story.Passage
		var err error

		p, pos, err = scanPassage(b, pos, &diags)
		if err != nil {
			return nil, diags, err
		}
		s.AppendPassage(p)

		// Salta il delimitatore "::" del passaggio successivo
		if pos+1 < len(b) && b[pos] == ':' && b[pos+1] == ':' {
			pos += 2
		}
	}

	return s, diags, nil
}

// scanPassage legge intestazione e corpo a partire dal byte dopo "::".
// Restituisce la posizione del prossimo "::" o la fine del documento.
func scanPassage(b []byte, pos int, diags *story.Diagnostics) (*story.Passage, int, error) {
	// Nome: fino a '[', '{' o newline non preceduti da escape
	name, pos := scanName(b, pos)

	// Tag
	var tags []string
	if pos < len(b) && b[pos] == '[' {
		pos++
		tagStart := pos
		for pos < len(b) && b[pos] != ']' {
			pos++
		}
		// "[]" produce il tag vuoto
		tags = strings.Split(string(b[tagStart:pos]), " ")
		if pos < len(b) {
			pos++
		}
	}

	// Dopo i tag: spazi, inizio dei metadati o fine riga
	for pos < len(b) && b[pos] != '\n' && !isMetadataStart(b, pos) {
		pos++
	}

	metadata := story.NewObject()
	if isMetadataStart(b, pos) {
		var raw string
		raw, pos = scanMetadata(b, pos)
		obj, err := story.ParseObject([]byte(raw))
		if err != nil {
			diags.Add(story.InvalidMetadata,
				fmt.Sprintf("Unable to parse passage metadata for '%s'. %v", name, err))
		} else {
			metadata = obj
		}
	}

	// Resto della riga di intestazione
	for pos < len(b) && b[pos] != '\n' {
		pos++
	}

	// Un'intestazione terminata da newline deve avere contenuto dopo
	if pos < len(b) && pos+1 >= len(b) {
		return nil, pos, story.ErrInvalidPassageStructure
	}
	pos++
	if pos > len(b) {
		pos = len(b)
	}

	// Corpo: fino al prossimo "::" (un ':' singolo è testo normale)
	bodyStart := pos
	for pos < len(b) {
		if b[pos] == ':' && pos+1 < len(b) && b[pos+1] == ':' {
			break
		}
		pos++
	}
	text := strings.TrimRight(string(b[bodyStart:pos]), "\r\n")

	p := story.NewPassage(name, text, tags...)
	p.SetMetadataObject(metadata)
	return p, pos, nil
}

func isEscapable(c byte) bool {
	switch c {
	case '[', ']', '{', '}', '\\':
		return true
	}
	return false
}

func scanName(b []byte, pos int) (string, int) {
	var name []byte
	for pos < len(b) {
		c := b[pos]
		if c == '\\' && pos+1 < len(b) && isEscapable(b[pos+1]) {
			name = append(name, b[pos+1])
			pos += 2
			continue
		}
		if c == '[' || c == '{' || c == '\n' {
			break
		}
		name = append(name, c)
		pos++
	}
	return strings.TrimSpace(string(name)), pos
}

func isMetadataStart(b []byte, pos int) bool {
	if pos >= len(b) || b[pos] != '{' {
		return false
	}
	return pos == 0 || b[pos-1] != '\\'
}

// scanMetadata legge il blocco JSON bilanciando le graffe e ignorando
// quelle dentro le stringhe. Non supera mai la fine della riga.
func scanMetadata(b []byte, pos int) (string, int) {
	start := pos
	depth := 0
	inString := false
	escaped := false

	for pos < len(b) && b[pos] != '\n' {
		c := b[pos]
		pos++

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			break
		}
	}

	return string(b[start:pos]), pos
}
