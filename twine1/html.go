// Package twine1 legge e produce il formato HTML di Twine 1 (storeArea).
package twine1

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"twee-kit/dom"
	"twee-kit/story"
)

// ErrNoTiddlers viene restituito quando lo storeArea non contiene passaggi
var ErrNoTiddlers = story.NewError(story.KindMissingHTMLElement,
	"ERROR: The document does not contain any tiddler nodes.", nil)

// Attributi dei tiddler conservati come metadati
var tiddlerMetadata = []struct{ attr, key string }{
	{"created", "created"},
	{"modifier", "modifier"},
	{"modified", "modified"},
	{"twine-position", "position"},
}

// Parse legge un documento Twine 1. Il documento è considerato una storia
// parziale: sono obbligatori solo lo storeArea e almeno un tiddler.
func Parse(src string) (*story.Story, story.Diagnostics, error) {
	var diags story.Diagnostics

	doc, err := dom.Parse(src)
	if err != nil {
		return nil, diags, story.NewError(story.KindMissingHTMLElement, story.ErrMissingHTMLElement.Msg, err)
	}

	store := dom.FindFirst(doc, dom.ByID("storeArea"))
	if store == nil {
		store = dom.FindFirst(doc, dom.ByID("store-area"))
	}
	if store == nil {
		return nil, diags, story.ErrMissingHTMLElement
	}

	tiddlers := dom.FindAll(store, dom.ByAttr("tiddler"))
	if len(tiddlers) == 0 {
		return nil, diags, ErrNoTiddlers
	}

	s := story.New()
	for _, node := range tiddlers {
		p, err := passageFromTiddler(node)
		if err != nil {
			return nil, diags, err
		}
		res, err := s.AddPassage(p)
		diags = append(diags, res.Diagnostics...)
		if err != nil {
			return nil, diags, err
		}
	}

	css := dom.FindFirst(doc, dom.ByID("storyCSS"))
	if css == nil {
		css = dom.FindFirst(doc, dom.ByID("story-style"))
	}
	if css != nil {
		text, err := dom.InnerHTML(css)
		if err != nil {
			return nil, diags, err
		}
		s.Stylesheets = append(s.Stylesheets, text)
	}

	return s, diags, nil
}

func passageFromTiddler(node *html.Node) (*story.Passage, error) {
	text, err := dom.InnerHTML(node)
	if err != nil {
		return nil, err
	}

	tags := strings.Fields(dom.AttrOr(node, "tags", ""))
	p := story.NewPassage(dom.AttrOr(node, "tiddler", ""), text, tags...)

	for _, m := range tiddlerMetadata {
		if v, ok := dom.Attr(node, m.attr); ok {
			p.AddMetadata(m.key, story.String(v))
		}
	}
	return p, nil
}

// Compile inserisce la storia nel template header.html di un formato Twine 1.
// I segnaposto sono sostituiti in un solo passaggio, quindi il testo già
// inserito (per esempio quello dei passaggi) non viene più toccato.
func Compile(s *story.Story, engine, header string) (string, error) {
	return compileAt(s, engine, header, time.Now())
}

func compileAt(s *story.Story, engine, header string, now time.Time) (string, error) {
	storeArea, err := s.ToTwine1HTML()
	if err != nil {
		return "", err
	}

	// STORY_SIZE deve precedere STORY
	r := strings.NewReplacer(
		"VERSION", s.Creator,
		"TIME", now.UTC().Format("2006-01-02T15:04:05.000Z"),
		"ENGINE", engine,
		"STORY_SIZE", strconv.Itoa(s.Len()),
		"STORY", storeArea,
		"START_AT", "",
	)
	return r.Replace(header), nil
}
