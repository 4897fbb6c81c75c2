package parser

import (
	"strings"

	"twee-kit/ifid"
	"twee-kit/story"
)

// Create genera il documento Twee di una storia ottenuta da Parse.
// Se la lista contiene un passaggio StoryData viene riscritto così com'è,
// altrimenti il blocco StoryData viene costruito dai campi della storia.
// A differenza di Story.ToTwee la storia non viene modificata.
func Create(s *story.Story) (string, story.Diagnostics, error) {
	var diags story.Diagnostics
	var sb strings.Builder

	if sd, err := s.GetPassageByName(story.StoryDataPassage); err == nil {
		twee, err := sd.ToTwee()
		if err != nil {
			return "", diags, err
		}
		sb.WriteString(twee)
	} else {
		data := s.StoryDataObject()
		if !ifid.IsValid(s.IFID) {
			diags.Add(story.RegeneratedIFID, "IFID is not in the proper format. Generating a new IFID.")
			data.Set("ifid", story.String(ifid.Generate()))
		}
		raw, err := story.MarshalPretty(data)
		if err != nil {
			return "", diags, err
		}
		sb.WriteString(":: StoryData\n")
		sb.Write(raw)
	}
	sb.WriteString("\n\n")

	for _, p := range s.Passages() {
		if p.Name == story.StoryDataPassage {
			continue
		}
		twee, err := p.ToTwee()
		if err != nil {
			return "", diags, err
		}
		sb.WriteString(twee)
		sb.WriteString("\n\n")
	}

	return sb.String(), diags, nil
}
