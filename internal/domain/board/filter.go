// Package board provides the pure board engines: filtering, sorting, and
// projection of items into per-column render lists. Nothing in this package
// mutates its inputs or touches a store.
package board

import (
	"strings"
	"time"

	"github.com/pipeboard/core/internal/domain/entities"
)

// Criteria defines which items to include. An absent or empty field means
// "no constraint on this dimension", never "match empty".
type Criteria struct {
	Kinds       []entities.ItemKind `json:"kinds"`
	Statuses    []string            `json:"statuses"`
	Assignees   []string            `json:"assignees"`
	Priorities  []entities.Priority `json:"priorities"`
	Categories  []string            `json:"categories"`
	Tags        []string            `json:"tags"`         // substring match against item tags
	HasMedia    *bool               `json:"has_media"`    // true=require media; false/nil=no constraint
	HasComments *bool               `json:"has_comments"` // true=require comments; false/nil=no constraint
	DateRange   *DateRange          `json:"date_range"`
	SearchTerm  string              `json:"search_term"` // case-insensitive substring across title, content, tags, assignees
}

// DateRange bounds CreatedAt inclusively. Range order is taken as given;
// an inverted range simply matches nothing.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether the criteria constrain nothing.
func (c Criteria) IsZero() bool {
	return len(c.Kinds) == 0 && len(c.Statuses) == 0 && len(c.Assignees) == 0 &&
		len(c.Priorities) == 0 && len(c.Categories) == 0 && len(c.Tags) == 0 &&
		c.HasMedia == nil && c.HasComments == nil && c.DateRange == nil && c.SearchTerm == ""
}

// Filter returns items matching all specified criteria (AND across
// dimensions, OR within a multi-value dimension). Input order is preserved
// and the input slice is never modified.
func Filter(items []*entities.Item, c Criteria) []*entities.Item {
	if c.IsZero() {
		return append([]*entities.Item(nil), items...)
	}
	var result []*entities.Item
	for _, it := range items {
		if matchesCriteria(it, c) {
			result = append(result, it)
		}
	}
	return result
}

func matchesCriteria(it *entities.Item, c Criteria) bool {
	if !matchesMembership(it, c) {
		return false
	}
	if c.HasMedia != nil && *c.HasMedia && !it.HasMedia() {
		return false
	}
	if c.HasComments != nil && *c.HasComments && !it.HasComments() {
		return false
	}
	if c.DateRange != nil && !inDateRange(it.CreatedAt, *c.DateRange) {
		return false
	}
	if c.SearchTerm != "" && !matchesSearch(it, c.SearchTerm) {
		return false
	}
	if len(c.Tags) > 0 && !matchesTags(it.Tags, c.Tags) {
		return false
	}
	return true
}

func matchesMembership(it *entities.Item, c Criteria) bool {
	if len(c.Kinds) > 0 && !containsKind(c.Kinds, it.Kind) {
		return false
	}
	if len(c.Statuses) > 0 && !containsFold(c.Statuses, it.Status) {
		return false
	}
	if len(c.Priorities) > 0 && !containsPriority(c.Priorities, it.Priority) {
		return false
	}
	if len(c.Categories) > 0 && !containsFold(c.Categories, it.Category) {
		return false
	}
	if len(c.Assignees) > 0 && !anyAssignee(it.Assignees, c.Assignees) {
		return false
	}
	return true
}

// matchesSearch performs case-insensitive substring matching across title,
// content, tags, and assignee names.
func matchesSearch(it *entities.Item, term string) bool {
	q := strings.ToLower(term)
	if strings.Contains(strings.ToLower(it.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(it.Content), q) {
		return true
	}
	for _, tag := range it.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	for _, a := range it.Assignees {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}

// matchesTags passes if any filter tag is a case-insensitive substring of
// any item tag.
func matchesTags(itemTags, filterTags []string) bool {
	for _, ft := range filterTags {
		f := strings.ToLower(ft)
		for _, it := range itemTags {
			if strings.Contains(strings.ToLower(it), f) {
				return true
			}
		}
	}
	return false
}

func inDateRange(t time.Time, r DateRange) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func anyAssignee(itemAssignees, wanted []string) bool {
	for _, a := range itemAssignees {
		if containsFold(wanted, a) {
			return true
		}
	}
	return false
}

func containsFold(slice []string, s string) bool {
	for _, v := range slice {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func containsKind(slice []entities.ItemKind, k entities.ItemKind) bool {
	for _, v := range slice {
		if v == k {
			return true
		}
	}
	return false
}

func containsPriority(slice []entities.Priority, p entities.Priority) bool {
	for _, v := range slice {
		if v == p {
			return true
		}
	}
	return false
}
