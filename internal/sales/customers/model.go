package customers

import (
	"strings"
	"time"

	"github.com/solarquote/solarquote/internal/shared"
)

type Customer struct {
	ID        string         `json:"id"`
	DealerID  string         `json:"dealerId"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Mobile    string         `json:"mobile"`
	Email     string         `json:"email,omitempty"`
	Address   shared.Address `json:"address"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
