// Package shell builds the dashboard frame around every page: the section
// navigation, the signed-in user's header and logout.
package shell

import (
	"strings"

	"usermgmt/console/internal/models"
)

type Icon string

const (
	IconHome  Icon = "home"
	IconUsers Icon = "users"
)

var icons = map[string]Icon{
	"Dashboard": IconHome,
	"User":      IconUsers,
}

// IconFor never fails; unknown sections get the home icon.
func IconFor(section string) Icon {
	if icon, ok := icons[section]; ok {
		return icon
	}
	return IconHome
}

// Variant selects how the initially active item is chosen.
type Variant string

const (
	// VariantSidebar marks items whose lower-cased label occurs in the path.
	VariantSidebar Variant = "sidebar"
	// VariantDashboard marks "Dashboard" and the first item.
	VariantDashboard Variant = "dashboard"
)

func ParseVariant(s string) Variant {
	if Variant(s) == VariantDashboard {
		return VariantDashboard
	}
	return VariantSidebar
}

type NavItem struct {
	Icon   Icon   `json:"icon"`
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

func PathFor(label string) string {
	return "/" + strings.ToLower(label)
}

func BuildNav(sections []models.Section, variant Variant, currentPath string) []NavItem {
	items := make([]NavItem, 0, len(sections))
	for i, s := range sections {
		label := s.SectionName
		var active bool
		switch variant {
		case VariantDashboard:
			active = label == "Dashboard" || i == 0
		default:
			active = strings.Contains(currentPath, strings.ToLower(label))
		}
		items = append(items, NavItem{
			Icon:   IconFor(label),
			Label:  label,
			Path:   PathFor(label),
			Active: active,
		})
	}
	return items
}

// Select makes exactly the clicked item active and returns where to go.
func Select(items []NavItem, label string) ([]NavItem, string) {
	out := make([]NavItem, len(items))
	for i, item := range items {
		item.Active = item.Label == label
		out[i] = item
	}
	return out, PathFor(label)
}

// Initials joins the upper-cased first letter of each word of fullName,
// or "JD" when there is no name.
func Initials(fullName string) string {
	words := strings.Fields(fullName)
	if len(words) == 0 {
		return "JD"
	}
	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}
