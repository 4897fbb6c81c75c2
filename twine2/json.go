package twine2

import (
	"fmt"

	"twee-kit/story"
)

// ParseJSON legge un documento Twine 2 JSON. I dati malformati vengono
// ignorati con un warning, tranne zoom che deve essere numerico.
func ParseJSON(src string) (*story.Story, story.Diagnostics, error) {
	var diags story.Diagnostics

	v, err := story.ParseValue([]byte(src))
	if err != nil {
		return nil, diags, story.NewError(story.KindInvalidJSON, story.ErrInvalidJSON.Msg, err)
	}

	var data *story.Object
	switch t := v.(type) {
	case *story.Object:
		data = t
	case story.Null:
		data = story.NewObject()
	default:
		return nil, diags, story.NewError(story.KindInvalidJSON, story.ErrInvalidJSON.Msg,
			fmt.Errorf("top-level value is not an object"))
	}

	s := story.New()

	if nv, ok := data.Get("name"); ok {
		if _, isNull := nv.(story.Null); !isNull {
			s.Name = story.Text(nv)
		}
	} else {
		diags.Add(story.MissingName, "name is required. Using the default story name.")
	}

	s.IFID = textOf(data, "ifid")
	s.Format = textOf(data, "format")
	s.FormatVersion = textOf(data, "format-version")
	s.Start = textOf(data, "start")
	s.Creator = textOf(data, "creator")
	s.CreatorVersion = textOf(data, "creator-version")

	if tv, ok := data.Get("tag-colors"); ok {
		if obj, isObj := tv.(*story.Object); isObj {
			for _, tag := range obj.Keys() {
				color, _ := obj.Get(tag)
				s.TagColors.Set(tag, story.Text(color))
			}
		} else {
			diags.Add(story.InvalidTagColors, "tag-colors is not a collection. Ignoring data.")
		}
	}

	if zv, ok := data.Get("zoom"); ok {
		n, isNum := zv.(story.Number)
		if !isNum {
			return nil, diags, story.NewError(story.KindInvalidOperation, "ERROR: The zoom value is not a number.", nil)
		}
		zoom, err := n.Float()
		if err != nil {
			return nil, diags, story.NewError(story.KindInvalidOperation, "ERROR: The zoom value is not a number.", err)
		}
		s.Zoom = zoom
	}

	if style := textOf(data, "style"); style != "" {
		s.Stylesheets = append(s.Stylesheets, style)
	}
	if script := textOf(data, "script"); script != "" {
		s.Scripts = append(s.Scripts, script)
	}

	pv, ok := data.Get("passages")
	if !ok {
		return s, diags, nil
	}

	items, isArray := pv.(story.Array)
	if !isArray {
		if _, isNull := pv.(story.Null); isNull {
			diags.Add(story.InvalidPassages, "No passages found.")
		} else {
			diags.Add(story.InvalidPassages, "passages is not a valid collection of passage data.")
		}
		return s, diags, nil
	}

	for i, item := range items {
		obj, isObj := item.(*story.Object)
		if !isObj {
			diags.Add(story.InvalidPassages, fmt.Sprintf("passage %d is not an object. Ignoring data.", i))
			continue
		}
		res, err := s.AddPassage(passageFromObject(obj, &diags))
		diags = append(diags, res.Diagnostics...)
		if err != nil {
			return nil, diags, err
		}
	}

	return s, diags, nil
}

func passageFromObject(obj *story.Object, diags *story.Diagnostics) *story.Passage {
	p := story.NewPassage(textOf(obj, "name"), textOf(obj, "text"))

	if tv, ok := obj.Get("tags"); ok {
		if tags, isArray := tv.(story.Array); isArray {
			for _, tag := range tags {
				p.AddTag(story.Text(tag))
			}
		}
	}

	if mv, ok := obj.Get("metadata"); ok {
		switch m := mv.(type) {
		case *story.Object:
			p.SetMetadataObject(m)
		case story.Null:
		default:
			diags.Add(story.InvalidMetadata,
				fmt.Sprintf("Unable to parse passage metadata for '%s'. Ignoring data.", p.Name))
		}
	}
	return p
}

// textOf legge una chiave come testo; assente o null diventa ""
func textOf(obj *story.Object, key string) string {
	v, ok := obj.Get(key)
	if !ok {
		return ""
	}
	return story.Text(v)
}
