package accounts

import "github.com/solarquote/solarquote/internal/shared"

type CreateDealerRequest struct {
	Username    string         `json:"username" validate:"required,min=3,max=50"`
	Password    string         `json:"password" validate:"required,min=8,max=72"`
	Admin       bool           `json:"admin"`
	FirstName   string         `json:"firstName" validate:"required,max=100"`
	LastName    string         `json:"lastName" validate:"required,max=100"`
	Mobile      string         `json:"mobile" validate:"required,mobile"`
	Email       string         `json:"email" validate:"required,email"`
	CompanyName string         `json:"companyName" validate:"max=200"`
	GSTNumber   string         `json:"gstNumber" validate:"omitempty,len=15"`
	PANNumber   string         `json:"panNumber" validate:"omitempty,len=10"`
	Aadhaar     string         `json:"aadhaarNumber" validate:"omitempty,len=12,numeric"`
	Address     shared.Address `json:"address"`
}

type CreateVisitorRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Mobile     string `json:"mobile" validate:"required,mobile"`
	Email      string `json:"email" validate:"required,email"`
	EmployeeID string `json:"employeeId" validate:"required,max=50"`
}

type CreateAccountManagerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Mobile   string `json:"mobile" validate:"omitempty,mobile"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}
