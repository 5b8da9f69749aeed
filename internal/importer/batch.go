package importer

import (
	"github.com/Vatsal-Thapliyal/joblisting/internal/clients/feeds"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// SplitIntoBatches groups items into batches of up to size elements,
// preserving order within and across batches. The last batch may be smaller.
func SplitIntoBatches(items []feeds.Item, size int) ([][]feeds.Item, error) {
	if size <= 0 {
		return nil, errors.New("batch size must be greater than zero")
	}
	if len(items) == 0 {
		return nil, nil
	}
	return lo.Chunk(items, size), nil
}
