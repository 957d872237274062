// Package users holds the console's user table: the projection of backend
// records into display rows and the search, filter and sort pipeline over them.
package users

import (
	"strings"
	"time"

	"usermgmt/console/internal/models"
)

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"

	StatusActive = "active"

	placeholderNA     = "N/A"
	placeholderRecent = "Recently"
)

// Record is one display row. Phone, Status, Location and LastActive are
// fixed placeholders; the backend does not supply them.
type Record struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Location   string `json:"location"`
	JoinDate   string `json:"joinDate"`
	Avatar     string `json:"avatar"`
	LastActive string `json:"lastActive"`
}

func FromRaw(raw models.RawUser) Record {
	return Record{
		ID:         raw.UserID.String(),
		Name:       raw.FullName,
		Email:      raw.Email,
		Phone:      placeholderNA,
		Role:       RoleName(raw.RoleID),
		Status:     StatusActive,
		Location:   placeholderNA,
		JoinDate:   raw.CreatedAt,
		Avatar:     raw.ProfileImage,
		LastActive: placeholderRecent,
	}
}

func FromRawList(raw []models.RawUser) []Record {
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		out = append(out, FromRaw(r))
	}
	return out
}

// RoleName maps a backend role_id to its display role.
func RoleName(roleID models.ID) string {
	if strings.TrimSpace(roleID.String()) == models.AdminRoleID {
		return RoleAdmin
	}
	return RoleUser
}

var joinDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// JoinTime parses JoinDate. ok is false for values no layout understands.
func (r Record) JoinTime() (time.Time, bool) {
	s := strings.TrimSpace(r.JoinDate)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range joinDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
