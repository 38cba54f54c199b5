// Package party models "a user or a band" references, used for item owners
// and loan recipients. Exactly one side is ever set.
package party

import (
	"encoding/json"
	"fmt"
)

type Kind string

const (
	KindUser Kind = "user"
	KindBand Kind = "band"
)

// Party is either a User(id) or a Band(id). The zero value is "unset".
type Party struct {
	kind Kind
	id   string
}

func User(id string) Party { return Party{kind: KindUser, id: id} }
func Band(id string) Party { return Party{kind: KindBand, id: id} }

func (p Party) Kind() Kind { return p.kind }
func (p Party) ID() string { return p.id }
func (p Party) IsZero() bool { return p.kind == "" || p.id == "" }
func (p Party) IsUser() bool { return p.kind == KindUser }
func (p Party) IsBand() bool { return p.kind == KindBand }
func (p Party) String() string { return string(p.kind) + ":" + p.id }

// Columns splits p into the nullable (user_id, band_id) column pair.
func (p Party) Columns() (userID, bandID *string) {
	id := p.id
	switch p.kind {
	case KindUser:
		return &id, nil
	case KindBand:
		return nil, &id
	}
	return nil, nil
}

// FromColumns rebuilds a Party from a nullable (user_id, band_id) column pair.
func FromColumns(userID, bandID *string) (Party, error) {
	switch {
	case userID != nil && bandID == nil:
		return User(*userID), nil
	case bandID != nil && userID == nil:
		return Band(*bandID), nil
	}
	return Party{}, fmt.Errorf("party: exactly one of user/band must be set")
}

type wire struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (p Party) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(wire{Kind: p.kind, ID: p.id})
}

func (p *Party) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = Party{}
		return nil
	}
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("party: missing id")
	}
	switch w.Kind {
	case KindUser, KindBand:
		*p = Party{kind: w.Kind, id: w.ID}
		return nil
	}
	return fmt.Errorf("party: unknown kind %q", w.Kind)
}
