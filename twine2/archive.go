package twine2

import (
	"strings"

	"twee-kit/dom"
	"twee-kit/story"
)

// Archive è una libreria di storie Twine 2: una sequenza di <tw-storydata>
type Archive struct {
	Stories []*story.Story
}

// ParseArchive legge tutti gli elementi <tw-storydata> del documento
func ParseArchive(src string) (*Archive, story.Diagnostics, error) {
	var diags story.Diagnostics

	doc, err := dom.Parse(src)
	if err != nil {
		return nil, diags, story.NewError(story.KindMissingStoryData, story.ErrMissingStoryData.Msg, err)
	}

	nodes := dom.FindAll(doc, dom.ByTag("tw-storydata"))
	if len(nodes) == 0 {
		return nil, diags, story.ErrMissingStoryData
	}

	archive := &Archive{}
	for _, node := range nodes {
		s, d, err := parseStoryData(node)
		diags = append(diags, d...)
		if err != nil {
			return nil, diags, err
		}
		archive.Stories = append(archive.Stories, s)
	}
	return archive, diags, nil
}

// ToHTML concatena le storie, ognuna seguita da una riga vuota
func (a *Archive) ToHTML() (string, story.Diagnostics, error) {
	var diags story.Diagnostics
	var sb strings.Builder
	for _, s := range a.Stories {
		out, d, err := s.ToTwine2HTML()
		diags = append(diags, d...)
		if err != nil {
			return "", diags, err
		}
		sb.WriteString(out)
		sb.WriteString("\n\n")
	}
	return sb.String(), diags, nil
}
