package board

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pipeboard/core/internal/domain/entities"
)

// SortKey selects the comparator used to order items.
type SortKey string

const (
	SortByPriority SortKey = "priority"
	SortByDate     SortKey = "date"
	SortByAssignee SortKey = "assignee"
	SortByType     SortKey = "type"
)

// SortDirection controls comparator sign.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// DefaultSort is applied when the caller specifies no key: most urgent first.
var DefaultSort = struct {
	Key       SortKey
	Direction SortDirection
}{SortByPriority, SortDesc}

// NormalizeSort fills in the default key and direction for empty values. A
// caller-supplied direction is honored even when the key is defaulted.
func NormalizeSort(key SortKey, dir SortDirection) (SortKey, SortDirection) {
	if key == "" {
		key = DefaultSort.Key
	}
	if dir == "" {
		dir = DefaultSort.Direction
	}
	return key, dir
}

// Sort returns a new slice ordered by the given key and direction. The sort
// is stable: ties preserve the relative input order. The input slice is not
// modified.
func Sort(items []*entities.Item, key SortKey, dir SortDirection) []*entities.Item {
	sorted := append([]*entities.Item(nil), items...)
	cmp := comparator(key)
	if cmp == nil {
		return sorted
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		c := cmp(sorted[i], sorted[j])
		if dir == SortDesc {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

// comparator returns a three-way compare for the key, or nil for an
// unknown key (input order is kept).
func comparator(key SortKey) func(a, b *entities.Item) int {
	switch key {
	case SortByPriority:
		return func(a, b *entities.Item) int {
			return a.Priority.Weight() - b.Priority.Weight()
		}
	case SortByDate:
		return func(a, b *entities.Item) int {
			au, bu := a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano()
			switch {
			case au < bu:
				return -1
			case au > bu:
				return 1
			default:
				return 0
			}
		}
	case SortByAssignee:
		// Collation rather than byte order, so accented names sort with
		// their base letter. Collators carry internal buffers, hence one
		// per Sort call.
		coll := collate.New(language.Und, collate.IgnoreCase)
		return func(a, b *entities.Item) int {
			an, bn := primaryAssignee(a), primaryAssignee(b)
			// Unassigned items order after everything else.
			switch {
			case an == "" && bn == "":
				return 0
			case an == "":
				return 1
			case bn == "":
				return -1
			default:
				return coll.CompareString(an, bn)
			}
		}
	case SortByType:
		return func(a, b *entities.Item) int {
			return strings.Compare(a.Kind.Label(), b.Kind.Label())
		}
	default:
		return nil
	}
}

// primaryAssignee is the display name used for assignee ordering, or ""
// when unassigned.
func primaryAssignee(it *entities.Item) string {
	if len(it.Assignees) == 0 {
		return ""
	}
	return it.Assignees[0]
}
