package customers

import "github.com/solarquote/solarquote/internal/shared"

// CustomerInput is the customer block of a quotation request.
type CustomerInput struct {
	FirstName string         `json:"firstName" validate:"required,max=100"`
	LastName  string         `json:"lastName" validate:"max=100"`
	Mobile    string         `json:"mobile" validate:"required,mobile"`
	Email     string         `json:"email,omitempty" validate:"omitempty,email"`
	Address   shared.Address `json:"address"`
}

type UpdateCustomerRequest struct {
	FirstName *string         `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string         `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Mobile    *string         `json:"mobile,omitempty" validate:"omitempty,mobile"`
	Email     *string         `json:"email,omitempty" validate:"omitempty,email"`
	Address   *shared.Address `json:"address,omitempty"`
}

type ListCustomersRequest struct {
	DealerID string
	Search   string
	Limit    int
	Offset   int
}
