package users

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// All is the filter value that disables a role or status filter.
const All = "all"

const (
	SortName     = "name"
	SortEmail    = "email"
	SortRole     = "role"
	SortJoinDate = "joinDate"
)

// Statuses are the status filter options the table offers.
var Statuses = []string{All, "active", "inactive", "pending"}

// SortKeys are the sort options the table offers.
var SortKeys = []string{SortName, SortEmail, SortRole, SortJoinDate}

type Query struct {
	Search string `json:"search"`
	Role   string `json:"role"`
	Status string `json:"status"`
	Sort   string `json:"sort"`
}

func DefaultQuery() Query {
	return Query{Role: All, Status: All, Sort: SortName}
}

// Normalized fills blank fields with their defaults.
func (q Query) Normalized() Query {
	if q.Role == "" {
		q.Role = All
	}
	if q.Status == "" {
		q.Status = All
	}
	if q.Sort == "" {
		q.Sort = SortName
	}
	return q
}

// Cleared resets search and both filters; the sort key is kept.
func (q Query) Cleared() Query {
	return Query{Role: All, Status: All, Sort: q.Normalized().Sort}
}

// Roles returns "all" followed by each distinct role in order of first
// appearance in records.
func Roles(records []Record) []string {
	roles := []string{All}
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.Role] {
			continue
		}
		seen[r.Role] = true
		roles = append(roles, r.Role)
	}
	return roles
}

// Apply runs search, role filter, status filter and sort, in that order.
// records is never modified.
func Apply(records []Record, q Query) []Record {
	q = q.Normalized()
	needle := strings.ToLower(q.Search)

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if needle != "" && !matches(r, needle) {
			continue
		}
		if q.Role != All && r.Role != q.Role {
			continue
		}
		if q.Status != All && r.Status != q.Status {
			continue
		}
		out = append(out, r)
	}

	sortRecords(out, q.Sort)
	return out
}

func matches(r Record, needle string) bool {
	return strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Email), needle) ||
		strings.Contains(strings.ToLower(r.Role), needle)
}

func sortRecords(records []Record, key string) {
	if key == SortJoinDate {
		sort.SliceStable(records, func(i, j int) bool {
			ti, _ := records[i].JoinTime()
			tj, _ := records[j].JoinTime()
			return ti.After(tj)
		})
		return
	}

	field := func(r Record) string { return r.Name }
	switch key {
	case SortEmail:
		field = func(r Record) string { return r.Email }
	case SortRole:
		field = func(r Record) string { return r.Role }
	}

	// Collator is not safe for concurrent use, so each sort gets its own.
	c := collate.New(language.English)
	sort.SliceStable(records, func(i, j int) bool {
		return c.CompareString(field(records[i]), field(records[j])) < 0
	})
}
