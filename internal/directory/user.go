package directory

import (
	"encoding/json"
	"strings"
)

// User is the subset of a SCIM user record the backend reads. Directory users
// are read through per request and never persisted locally.
type User struct {
	ID       string       `json:"id"`
	UserName string       `json:"userName"`
	Name     Name         `json:"name"`
	Emails   []EmailEntry `json:"emails"`
	Groups   []Group      `json:"groups"`
	// Legacy carries the WSO2 schema extension some tenant records still hold
	// their email addresses under instead of the standard emails attribute.
	Legacy *LegacyExtension `json:"urn:scim:wso2:schema,omitempty"`
}

// Name carries the SCIM name sub-attributes.
type Name struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// Group carries the display name of a group the user belongs to; membership
// display names are the sole role signal.
type Group struct {
	Display string `json:"display"`
}

// LegacyExtension carries the tenant's legacy schema-extension attributes.
type LegacyExtension struct {
	EmailAddresses []string `json:"emailAddresses"`
}

// EmailEntry tolerates both SCIM encodings of an email: a bare string or a
// complex attribute with a value field.
type EmailEntry struct {
	Value string
}

func (e *EmailEntry) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		e.Value = plain
		return nil
	}
	var complexAttr struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &complexAttr); err != nil {
		return err
	}
	e.Value = complexAttr.Value
	return nil
}

func (e EmailEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Value)
}

// PrimaryEmail returns the first listed email, falling back to the legacy
// extension's first address. The second return reports whether any was found.
func (u User) PrimaryEmail() (string, bool) {
	if len(u.Emails) > 0 && u.Emails[0].Value != "" {
		return u.Emails[0].Value, true
	}
	if u.Legacy != nil && len(u.Legacy.EmailAddresses) > 0 && u.Legacy.EmailAddresses[0] != "" {
		return u.Legacy.EmailAddresses[0], true
	}
	return "", false
}

// InGroupContaining reports whether any group display name contains the given
// fragment, compared case-insensitively.
func (u User) InGroupContaining(fragment string) bool {
	needle := strings.ToLower(fragment)
	for _, group := range u.Groups {
		if strings.Contains(strings.ToLower(group.Display), needle) {
			return true
		}
	}
	return false
}
