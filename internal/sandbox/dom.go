package sandbox

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// DOM provides a lightweight document proxy for sandboxed JavaScript
type DOM struct {
	root    *Element
	body    *Element
	scripts []*Element
	changes []DOMChange
	mu      sync.RWMutex
}

// Element represents a DOM element
type Element struct {
	TagName    string
	ID         string
	ClassName  string
	Attributes map[string]string
	Children   []*Element
	Parent     *Element
}

// NewElement creates a detached element.
func NewElement(tag string) *Element {
	return &Element{
		TagName:    strings.ToLower(tag),
		Attributes: make(map[string]string),
	}
}

// NewDOM creates an empty document with a body.
func NewDOM() *DOM {
	root := NewElement("document")
	body := NewElement("body")
	root.AddElement(body)
	return &DOM{
		root:    root,
		body:    body,
		changes: []DOMChange{},
	}
}

// ParseDOM builds a DOM from the body of an HTML document. Script elements
// are skipped; they run in the sandbox instead of becoming nodes.
func ParseDOM(r io.Reader) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	d := NewDOM()
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		if el := elementFrom(s); el != nil {
			d.body.AddElement(el)
		}
	})
	return d, nil
}

func elementFrom(s *goquery.Selection) *Element {
	tag := goquery.NodeName(s)
	if tag == "script" {
		return nil
	}

	el := NewElement(tag)
	for _, attr := range s.Nodes[0].Attr {
		el.Attributes[attr.Key] = attr.Val
	}
	el.ID = el.Attributes["id"]
	el.ClassName = el.Attributes["class"]

	s.Children().Each(func(_ int, child *goquery.Selection) {
		if c := elementFrom(child); c != nil {
			el.AddElement(c)
		}
	})
	return el
}

// Body returns the body element.
func (d *DOM) Body() *Element {
	return d.body
}

// Query finds elements by selector (simplified)
func (d *DOM) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Simple selector parsing
	if strings.HasPrefix(selector, "#") {
		id := strings.TrimPrefix(selector, "#")
		if elem := d.findByID(d.root, id); elem != nil {
			return []*Element{elem}
		}
	} else if strings.HasPrefix(selector, ".") {
		class := strings.TrimPrefix(selector, ".")
		return d.findByClass(d.root, class)
	} else {
		return d.findByTag(d.root, selector)
	}

	return []*Element{}
}

// Append attaches child to parent and records the change. Appended script
// elements are remembered so the host can complete or fail their load.
func (d *DOM) Append(parent, child *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if child.Parent != nil {
		child.Remove()
	}
	parent.AddElement(child)
	if child.TagName == "script" {
		d.scripts = append(d.scripts, child)
	}
	d.changes = append(d.changes, DOMChange{
		Type:     "append_child",
		Selector: parent.Describe(),
		Property: child.TagName,
	})
}

// Scripts returns the script elements appended so far, in order.
func (d *DOM) Scripts() []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Element{}, d.scripts...)
}

// GetChanges returns accumulated DOM changes
func (d *DOM) GetChanges() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

// RecordChange adds a DOM change
func (d *DOM) RecordChange(change DOMChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, change)
}

// Element methods

// GetAttribute retrieves attribute value
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[name]
}

// SetAttribute sets attribute value
func (e *Element) SetAttribute(name, value string) {
	e.Attributes[name] = value
	switch name {
	case "id":
		e.ID = value
	case "class":
		e.ClassName = value
	}
}

// HasClass reports whether class is one of the element's classes.
func (e *Element) HasClass(class string) bool {
	for _, c := range strings.Fields(e.ClassName) {
		if c == class {
			return true
		}
	}
	return false
}

// Describe returns a short selector-like label, e.g. div.container.
func (e *Element) Describe() string {
	switch {
	case e.ID != "":
		return e.TagName + "#" + e.ID
	case e.ClassName != "":
		return e.TagName + "." + strings.Join(strings.Fields(e.ClassName), ".")
	}
	return e.TagName
}

// Helper methods for querying

func (d *DOM) findByID(elem *Element, id string) *Element {
	if elem.ID == id {
		return elem
	}
	for _, child := range elem.Children {
		if found := d.findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func (d *DOM) findByClass(elem *Element, class string) []*Element {
	var result []*Element
	if elem.HasClass(class) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, d.findByClass(child, class)...)
	}
	return result
}

func (d *DOM) findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, d.findByTag(child, tag)...)
	}
	return result
}

// AddElement adds a child element
func (e *Element) AddElement(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

// Remove removes element from parent
func (e *Element) Remove() {
	if e.Parent == nil {
		return
	}
	children := e.Parent.Children[:0]
	for _, child := range e.Parent.Children {
		if child != e {
			children = append(children, child)
		}
	}
	e.Parent.Children = children
	e.Parent = nil
}
