package accounts

import (
	"time"

	"github.com/solarquote/solarquote/internal/shared"
)

// Realm is an identity space. Usernames are unique within a realm, so a
// dealer and a visitor may share one.
type Realm string

const (
	RealmDealer         Realm = "dealer"
	RealmVisitor        Realm = "visitor"
	RealmAccountManager Realm = "account-management"
)

// RealmFor maps a role onto the identity space it authenticates in. Admins
// sign in through the dealer realm.
func RealmFor(role shared.Role) Realm {
	switch role {
	case shared.RoleVisitor:
		return RealmVisitor
	case shared.RoleAccountManager:
		return RealmAccountManager
	default:
		return RealmDealer
	}
}

// Account is a tagged union: exactly one of Dealer, Visitor or Manager is set,
// chosen by Role. Admins carry a Dealer profile.
type Account struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Role         shared.Role `json:"role"`
	IsActive     bool        `json:"isActive"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	Dealer  *DealerProfile  `json:"dealer,omitempty"`
	Visitor *VisitorProfile `json:"visitor,omitempty"`
	Manager *ManagerProfile `json:"accountManager,omitempty"`
}

// DisplayName returns the human name for the account.
func (a Account) DisplayName() string {
	switch {
	case a.Dealer != nil:
		return joinName(a.Dealer.FirstName, a.Dealer.LastName)
	case a.Visitor != nil:
		return joinName(a.Visitor.FirstName, a.Visitor.LastName)
	case a.Manager != nil:
		return a.Manager.FullName
	}
	return a.Username
}

// Email returns the contact address of the account, if any.
func (a Account) Email() string {
	switch {
	case a.Dealer != nil:
		return a.Dealer.Email
	case a.Visitor != nil:
		return a.Visitor.Email
	case a.Manager != nil:
		return a.Manager.Email
	}
	return ""
}

// Principal converts the account into the request principal.
func (a Account) Principal() shared.Principal {
	return shared.Principal{AccountID: a.ID, Username: a.Username, Role: a.Role}
}

type DealerProfile struct {
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	Mobile      string         `json:"mobile"`
	Email       string         `json:"email"`
	CompanyName string         `json:"companyName,omitempty"`
	GSTNumber   string         `json:"gstNumber,omitempty"`
	PANNumber   string         `json:"panNumber,omitempty"`
	Aadhaar     string         `json:"aadhaarNumber,omitempty"`
	Address     shared.Address `json:"address"`
}

type VisitorProfile struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Mobile     string `json:"mobile"`
	Email      string `json:"email"`
	EmployeeID string `json:"employeeId"`
}

type ManagerProfile struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile,omitempty"`
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
