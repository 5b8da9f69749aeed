package feeds

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Item is one loosely-typed feed entry. Element text appears either as a
// bare string or, for attribute-bearing elements like
// <guid isPermaLink="true">…</guid>, as a map holding the character data
// under "#text" next to one key per attribute. Repeated children become a
// slice. Downstream normalization relies on exactly this shape.
type Item map[string]any

// TextKeys are the keys under which wrapped element text may appear, in
// probe order.
var TextKeys = []string{"#text", "_"}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Chardata string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// Parse decodes an RSS 2.0 or Atom document into its ordered items. A
// document that cannot be decoded, or whose root is neither <rss> nor
// <feed>, is a *ParseError.
func Parse(data []byte) ([]Item, error) {

	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Err: err}
	}

	switch root.XMLName.Local {
	case "rss":
		for _, child := range root.Children {
			if child.XMLName.Local == "channel" {
				return collectItems(child, "item"), nil
			}
		}
		return nil, &ParseError{Err: fmt.Errorf("rss document has no channel element")}
	case "feed":
		return collectItems(root, "entry"), nil
	default:
		return nil, &ParseError{Err: fmt.Errorf("unsupported feed root element: %v", root.XMLName.Local)}
	}
}

func collectItems(parent xmlNode, name string) []Item {
	var items []Item
	for _, child := range parent.Children {
		if child.XMLName.Local != name {
			continue
		}
		item, ok := child.value().(map[string]any)
		if !ok {
			item = map[string]any{}
		}
		items = append(items, item)
	}
	return items
}

// value converts a node into the loosely-typed representation: a plain
// string when the element carries nothing but text, otherwise a map.
func (n xmlNode) value() any {

	text := strings.TrimSpace(n.Chardata)

	if len(n.Attrs) == 0 && len(n.Children) == 0 {
		return text
	}

	out := map[string]any{}
	for _, attr := range n.Attrs {
		out[attr.Name.Local] = attr.Value
	}
	if text != "" {
		out["#text"] = text
	}

	for _, child := range n.Children {
		key := child.XMLName.Local
		value := child.value()

		existing, ok := out[key]
		if !ok {
			out[key] = value
			continue
		}
		if slice, isSlice := existing.([]any); isSlice {
			out[key] = append(slice, value)
		} else {
			out[key] = []any{existing, value}
		}
	}

	return out
}
