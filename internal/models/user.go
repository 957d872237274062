package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AdminRoleID is the role_id the backend uses for administrators.
const AdminRoleID = "1"

// ID is a backend identifier. The API emits user_id and role_id either as
// JSON numbers or strings depending on the endpoint, so both decode here.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// RawUser is one element of the /getusers payload.
type RawUser struct {
	UserID       ID     `json:"user_id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	RoleID       ID     `json:"role_id"`
	CreatedAt    string `json:"createdAt"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Profile is the editable subset of a user's own record.
type Profile struct {
	UserID       ID     `json:"user_id,omitempty"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ProfileImage string `json:"profile_image"`
}

// Section is one server-declared sidebar destination.
type Section struct {
	SectionName string `json:"section_name"`
}
