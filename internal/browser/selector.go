package browser

import "fmt"

// SelectorKind is how a Selector addresses an element.
type SelectorKind int

const (
	// KindID matches the element whose id attribute equals Value.
	KindID SelectorKind = iota
	// KindCSS treats Value as a CSS selector.
	KindCSS
	// KindClass matches elements carrying the class Value.
	KindClass
)

// Selector addresses a single DOM element.
type Selector struct {
	Kind  SelectorKind
	Value string
}

// ByID selects an element by id.
func ByID(id string) Selector { return Selector{Kind: KindID, Value: id} }

// ByCSS selects an element by CSS selector.
func ByCSS(css string) Selector { return Selector{Kind: KindCSS, Value: css} }

// ByClass selects an element by class name.
func ByClass(class string) Selector { return Selector{Kind: KindClass, Value: class} }

// Query renders the selector as a CSS query usable with querySelector.
func (s Selector) Query() string {
	switch s.Kind {
	case KindID:
		return "#" + s.Value
	case KindClass:
		return "." + s.Value
	default:
		return s.Value
	}
}

func (s Selector) String() string {
	switch s.Kind {
	case KindID:
		return fmt.Sprintf("id=%s", s.Value)
	case KindClass:
		return fmt.Sprintf("class=%s", s.Value)
	default:
		return fmt.Sprintf("css=%s", s.Value)
	}
}
