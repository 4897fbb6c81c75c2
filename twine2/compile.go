package twine2

import (
	"strings"

	"twee-kit/formats"
	"twee-kit/ifid"
	"twee-kit/story"
)

// Compile inserisce la storia nel template del formato. Qui un IFID non
// valido è un errore: la pubblicazione non deve cambiare l'identità della storia.
func Compile(s *story.Story, f *formats.StoryFormat) (string, story.Diagnostics, error) {
	if f == nil || f.Source == "" {
		return "", nil, formats.ErrEmptySource
	}
	if !ifid.IsValid(s.IFID) {
		return "", nil, story.ErrInvalidIFID
	}

	data, diags, err := s.ToTwine2HTML()
	if err != nil {
		return "", diags, err
	}

	out := strings.ReplaceAll(f.Source, "{{STORY_DATA}}", data)
	out = strings.ReplaceAll(out, "{{STORY_NAME}}", s.Name)
	return out, diags, nil
}
