// Package twine2 gestisce i formati di Twine 2: HTML, archivio, JSON e la
// compilazione con un formato di storia.
package twine2

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"twee-kit/dom"
	"twee-kit/story"
)

// Parse legge il primo elemento <tw-storydata> del documento
func Parse(src string) (*story.Story, story.Diagnostics, error) {
	doc, err := dom.Parse(src)
	if err != nil {
		return nil, nil, story.NewError(story.KindMissingStoryData, story.ErrMissingStoryData.Msg, err)
	}

	node := dom.FindFirst(doc, dom.ByTag("tw-storydata"))
	if node == nil {
		return nil, nil, story.ErrMissingStoryData
	}
	return parseStoryData(node)
}

// parseStoryData converte un singolo nodo <tw-storydata>; è condiviso con
// ParseArchive.
func parseStoryData(node *html.Node) (*story.Story, story.Diagnostics, error) {
	var diags story.Diagnostics
	s := story.New()

	s.Name = dom.AttrOr(node, "name", "")
	s.IFID = dom.AttrOr(node, "ifid", "")
	s.Creator = dom.AttrOr(node, "creator", "")
	s.CreatorVersion = dom.AttrOr(node, "creator-version", "")
	s.Format = dom.AttrOr(node, "format", "")
	s.FormatVersion = dom.AttrOr(node, "format-version", "")

	zoom, err := strconv.ParseFloat(strings.TrimSpace(dom.AttrOr(node, "zoom", "1")), 64)
	if err != nil {
		return nil, diags, story.NewError(story.KindInvalidOperation,
			"ERROR: The zoom attribute of <tw-storydata> is not a number.", err)
	}
	s.Zoom = zoom

	// Si conserva il nome del passaggio iniziale, non il pid
	startPID := dom.AttrOr(node, "startnode", "")

	for _, pn := range dom.FindAll(node, dom.ByTag("tw-passagedata")) {
		p := passageFromNode(pn)
		if startPID != "" && dom.AttrOr(pn, "pid", "") == startPID {
			s.Start = p.Name
		}
		res, err := s.AddPassage(p)
		diags = append(diags, res.Diagnostics...)
		if err != nil {
			return nil, diags, err
		}
	}

	for _, tn := range dom.FindAll(node, dom.ByTag("tw-tag")) {
		name, ok := dom.Attr(tn, "name")
		if !ok || name == "" {
			continue
		}
		s.TagColors.Set(name, dom.AttrOr(tn, "color", ""))
	}

	for _, sn := range dom.FindAll(node, isUserStylesheet) {
		if css := dom.InnerText(sn); css != "" {
			s.Stylesheets = append(s.Stylesheets, css)
		}
	}
	for _, sn := range dom.FindAll(node, isUserScript) {
		if js := dom.InnerText(sn); js != "" {
			s.Scripts = append(s.Scripts, js)
		}
	}

	return s, diags, nil
}

func passageFromNode(pn *html.Node) *story.Passage {
	tags := strings.Fields(dom.AttrOr(pn, "tags", ""))
	p := story.NewPassage(dom.AttrOr(pn, "name", "Untitled Passage"), dom.InnerText(pn), tags...)

	if v, ok := dom.Attr(pn, "size"); ok {
		p.SetMetadata("size", story.String(v))
	}
	if v, ok := dom.Attr(pn, "position"); ok {
		p.SetMetadata("position", story.String(v))
	}
	return p
}

func isUserStylesheet(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "style" {
		return false
	}
	return dom.AttrOr(n, "type", "") == "text/twine-css" ||
		dom.AttrOr(n, "id", "") == "twine-user-stylesheet"
}

func isUserScript(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "script" {
		return false
	}
	return dom.AttrOr(n, "type", "") == "text/twine-javascript" ||
		dom.AttrOr(n, "id", "") == "twine-user-script"
}
