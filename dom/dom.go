// Package dom raccoglie le poche operazioni sull'albero HTML che servono
// ai parser Twine 1 e Twine 2: ricerca di elementi e lettura di attributi.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Parse costruisce l'albero del documento
func Parse(src string) (*html.Node, error) {
	return html.Parse(strings.NewReader(src))
}

// Matcher decide se un nodo va selezionato
type Matcher func(n *html.Node) bool

// ByTag seleziona gli elementi con il nome dato (minuscolo)
func ByTag(tag string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

// ByAttr seleziona gli elementi che hanno l'attributo
func ByAttr(key string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		_, ok := Attr(n, key)
		return ok
	}
}

// ByID seleziona l'elemento con l'id dato
func ByID(id string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := Attr(n, "id")
		return ok && v == id
	}
}

// FindAll visita l'albero in profondità (n escluso) e restituisce i nodi
// selezionati in ordine di documento
func FindAll(n *html.Node, match Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// FindFirst restituisce il primo nodo selezionato o nil
func FindFirst(n *html.Node, match Matcher) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := FindFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// Attr legge un attributo
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr legge un attributo con valore di default
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// InnerText concatena il testo di tutti i discendenti
func InnerText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// InnerHTML serializza i figli del nodo
func InnerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// OuterHTML serializza il nodo stesso
func OuterHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
