package domain

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

// Identity is the cached snapshot of the signed-in user.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Partial reports whether only the subject id is known, as happens when the
// identity was synthesized from token claims.
func (i Identity) Partial() bool {
	return i.ID != "" && i.Email == "" && i.Name == "" && i.CreatedAt == ""
}

// UnmarshalJSON accepts the id as a JSON string or number.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        userID `json:"id"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		CreatedAt string `json:"created_at"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &wire); err != nil {
		return err
	}
	*i = Identity{ID: string(wire.ID), Email: wire.Email, Name: wire.Name, CreatedAt: wire.CreatedAt}
	return nil
}

type userID string

func (u *userID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*u = ""
	case data[0] == '"':
		var s string
		if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = userID(s)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("identity id must be a string or number, got %s", data)
		}
		*u = userID(data)
	}
	return nil
}
