package importer

import "github.com/Vatsal-Thapliyal/joblisting/internal/clients/feeds"

// externalIDFields is the identifier probe order. The order is a contract:
// an earlier field always wins over a later one, no matter which are set.
var externalIDFields = []string{"guid", "id", "link", "url"}

// ResolveExternalID derives the stable identifier an item is deduplicated
// by. Returns ErrMissingExternalID when no candidate field has text.
func ResolveExternalID(item feeds.Item) (string, error) {
	for _, key := range externalIDFields {
		value, ok := item[key]
		if !ok {
			continue
		}
		if s := extractText(value); s != "" {
			return s, nil
		}
	}
	return "", ErrMissingExternalID
}
