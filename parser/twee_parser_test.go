package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twee-kit/story"
)

const sampleTwee = `:: StoryTitle
La Grotta

:: StoryData
{
  "ifid": "D674C58C-DEFA-4F70-B7A2-27742230C0FC",
  "format": "Harlowe",
  "format-version": "3.3.8",
  "start": "Ingresso"
}

:: Ingresso [intro buio] {"position":"100,200"}
Sei davanti alla grotta. [[Entra->Sala]]

:: Sala
Una sala enorme: niente di più.
`

// ============================================
// Documenti non validi
// ============================================

func TestParseEmptyDocument(t *testing.T) {
	_, _, err := Parse("")
	assert.True(t, errors.Is(err, story.ErrNoPassages))
	assert.Equal(t, "ERROR: The document does not contain any passages.", err.Error())
}

func TestParseHeaderWithoutBody(t *testing.T) {
	_, _, err := Parse("::Name\n")
	assert.True(t, errors.Is(err, story.ErrInvalidPassageStructure))
	assert.Equal(t, "ERROR: The document contains invalid passage.", err.Error())
}

func TestParseHeaderAtEndOfDocument(t *testing.T) {
	s, _, err := Parse("::Name")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "Name", s.Passages()[0].Name)
	assert.Empty(t, s.Passages()[0].Text)
}

func TestParseTrailingDelimiter(t *testing.T) {
	_, _, err := Parse("testo::")
	assert.True(t, errors.Is(err, story.ErrNoPassages))
}

func TestParseSingleColonsOnly(t *testing.T) {
	s, diags, err := Parse("ore 10:30, poi 11:00")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, 0, s.Len())
}

// ============================================
// Documenti validi
// ============================================

func TestParseTwoPassages(t *testing.T) {
	s, diags, err := Parse(":: A\nHello\n\n:: B\nWorld")
	require.NoError(t, err)
	assert.Empty(t, diags)

	passages := s.Passages()
	require.Len(t, passages, 2)
	assert.Equal(t, "A", passages[0].Name)
	assert.Equal(t, "Hello", passages[0].Text)
	assert.Equal(t, "B", passages[1].Name)
	assert.Equal(t, "World", passages[1].Text)
}

func TestParseIgnoresTextBeforeFirstPassage(t *testing.T) {
	s, _, err := Parse("commento iniziale\n:: A\ntesto")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "A", s.Passages()[0].Name)
}

func TestParseFirstColonMustOpenPassage(t *testing.T) {
	// il primo ':' del documento è isolato: nessun passaggio
	s, diags, err := Parse("Nota: vedi sotto\n:: A\ntesto")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, 0, s.Len())
}

func TestParseKeepsSpecialPassagesFlat(t *testing.T) {
	s, diags, err := Parse(sampleTwee)
	require.NoError(t, err)
	assert.Empty(t, diags)

	// la lista è piatta: StoryData e StoryTitle restano passaggi
	require.Equal(t, 4, s.Len())
	assert.Equal(t, "Untitled", s.Name)

	entry, err := s.GetPassageByName("Ingresso")
	require.NoError(t, err)
	assert.Equal(t, []string{"intro", "buio"}, entry.Tags())
	pos, err := entry.GetMetadata("position")
	require.NoError(t, err)
	assert.Equal(t, story.String("100,200"), pos)
	assert.Equal(t, "Sei davanti alla grotta. [[Entra->Sala]]", entry.Text)

	hall, err := s.GetPassageByName("Sala")
	require.NoError(t, err)
	assert.Equal(t, "Una sala enorme: niente di più.", hall.Text)
}

func TestParseThenFromPassages(t *testing.T) {
	flat, _, err := Parse(sampleTwee)
	require.NoError(t, err)

	s, diags, err := story.FromPassages(flat.Passages())
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, "La Grotta", s.Name)
	assert.Equal(t, "D674C58C-DEFA-4F70-B7A2-27742230C0FC", s.IFID)
	assert.Equal(t, "Harlowe", s.Format)
	assert.Equal(t, "Ingresso", s.Start)
	assert.Equal(t, 3, s.Len())
}

func TestParseEmptyTagList(t *testing.T) {
	s, _, err := Parse(":: A []\ntesto")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, s.Passages()[0].Tags())
}

func TestParseInvalidMetadataIsDiagnostic(t *testing.T) {
	s, diags, err := Parse(":: A {bad}\ntesto")
	require.NoError(t, err)
	require.True(t, diags.Has(story.InvalidMetadata))
	assert.Contains(t, diags[0].Message, "Unable to parse passage metadata for 'A'.")

	p := s.Passages()[0]
	assert.Equal(t, 0, p.Metadata().Len())
	assert.Equal(t, "testo", p.Text)
}

func TestParseMetadataWithBracesInStrings(t *testing.T) {
	s, diags, err := Parse(":: A {\"note\":\"a}b{\",\"size\":\"1,1\"}\ntesto")
	require.NoError(t, err)
	assert.Empty(t, diags)

	note, err := s.Passages()[0].GetMetadata("note")
	require.NoError(t, err)
	assert.Equal(t, story.String("a}b{"), note)
}

func TestParseEscapedName(t *testing.T) {
	s, _, err := Parse(":: Nome \\[1\\] \\{x\\} [t]\ntesto")
	require.NoError(t, err)

	p := s.Passages()[0]
	assert.Equal(t, "Nome [1] {x}", p.Name)
	assert.Equal(t, []string{"t"}, p.Tags())
}

func TestParseCRLF(t *testing.T) {
	s, _, err := Parse(":: A\r\nuno\r\n\r\n:: B\r\ndue\r\n")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "uno", s.Passages()[0].Text)
	assert.Equal(t, "B", s.Passages()[1].Name)
}

func TestParserFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storia.twee")
	require.NoError(t, os.WriteFile(path, []byte(sampleTwee), 0644))

	s, _, err := NewTweeParser(path).Parse()
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())

	_, _, err = NewTweeParser(filepath.Join(t.TempDir(), "manca.twee")).Parse()
	assert.Error(t, err)
}

// ============================================
// Scrittura
// ============================================

func TestStoryToTweeRoundTrip(t *testing.T) {
	flat, _, err := Parse(sampleTwee)
	require.NoError(t, err)
	original, _, err := story.FromPassages(flat.Passages())
	require.NoError(t, err)

	out, diags, err := original.ToTwee()
	require.NoError(t, err)
	assert.Empty(t, diags)

	flat, _, err = Parse(out)
	require.NoError(t, err)
	again, _, err := story.FromPassages(flat.Passages())
	require.NoError(t, err)

	assert.Equal(t, original.Name, again.Name)
	assert.Equal(t, original.IFID, again.IFID)
	assert.Equal(t, original.Start, again.Start)
	assert.Equal(t, original.Len(), again.Len())
	for i, p := range original.Passages() {
		q := again.Passages()[i]
		assert.Equal(t, p.Name, q.Name)
		assert.Equal(t, p.Text, q.Text)
		assert.Equal(t, p.Tags(), q.Tags())
	}
}

func TestEscapedNameRoundTrip(t *testing.T) {
	s, _, err := Parse(":: A\\[b\\] \\{c\\} \\\\ [t]\ntesto")
	require.NoError(t, err)
	p := s.Passages()[0]
	require.Equal(t, "A[b] {c} \\", p.Name)

	out, err := p.ToTwee()
	require.NoError(t, err)
	assert.Equal(t, ":: A\\[b\\] \\{c\\} \\\\ [t]\ntesto", out)

	again, _, err := Parse(out)
	require.NoError(t, err)
	q := again.Passages()[0]
	assert.Equal(t, p.Name, q.Name)
	assert.Equal(t, []string{"t"}, q.Tags())
	assert.Equal(t, "testo", q.Text)
}

func TestCreateKeepsStoryDataPassage(t *testing.T) {
	s, _, err := Parse(sampleTwee)
	require.NoError(t, err)

	out, diags, err := Create(s)
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.True(t, strings.HasPrefix(out, ":: StoryData\n"))
	assert.Equal(t, 1, strings.Count(out, ":: StoryData"))
	assert.Contains(t, out, ":: StoryTitle\nLa Grotta\n\n")
	assert.Contains(t, out, ":: Ingresso [intro buio] {\"position\":\"100,200\"}\n")
}

func TestCreateBuildsStoryData(t *testing.T) {
	s, _, err := Parse(":: A\ntesto")
	require.NoError(t, err)

	out, diags, err := Create(s)
	require.NoError(t, err)
	assert.True(t, diags.Has(story.RegeneratedIFID))
	assert.True(t, strings.HasPrefix(out, ":: StoryData\n{\n  \"ifid\": \""))
	assert.True(t, strings.HasSuffix(out, ":: A\ntesto\n\n"))
	// la storia non viene modificata
	assert.Empty(t, s.IFID)
}

// ============================================
// Validazione
// ============================================

func TestValidateStory(t *testing.T) {
	s, diags, err := Parse(sampleTwee)
	require.NoError(t, err)

	result := ValidateStory(s, diags)
	assert.True(t, result.Valid)
	assert.Equal(t, 4, result.PassageCount)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateReportsProblems(t *testing.T) {
	src := ":: StoryData\n{\"start\":\"Manca\"}\n\n:: A\nuno\n\n:: A\ndue"
	s, diags, err := Parse(src)
	require.NoError(t, err)

	result := ValidateStory(s, diags)
	assert.True(t, result.Valid)

	var messages []string
	for _, w := range result.Warnings {
		messages = append(messages, w.Message)
	}
	assert.Contains(t, messages, "nome duplicato: il passaggio successivo sostituisce il precedente")
	assert.Contains(t, messages, "IFID mancante o non valido, ne verrà generato uno nuovo")
	assert.Contains(t, messages, "il passaggio iniziale 'Manca' non esiste")
}

func TestValidateFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vuoto.twee")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	result := NewTweeParser(path).Validate()
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, story.ErrNoPassages.Error(), result.Errors[0].Message)
}
