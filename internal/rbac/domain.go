package rbac

import "github.com/solarquote/solarquote/internal/shared"

// Permission names checked by route guards.
const (
	PermCatalogView     = "catalog.view"
	PermCatalogManage   = "catalog.manage"
	PermQuotationCreate = "quotation.create"
	PermQuotationView   = "quotation.view"
	PermQuotationManage = "quotation.manage"
	PermQuotationExport = "quotation.export"
	PermCustomerView    = "customer.view"
	PermCustomerEdit    = "customer.edit"
	PermAccountManage   = "account.manage"
	PermVisitorList     = "visitor.list"
	PermVisitSchedule   = "visit.schedule"
	PermVisitPerform    = "visit.perform"
	PermPaymentView     = "payment.view"
	PermJobsView        = "jobs.view"
	PermAuditView       = "audit.view"
)

// DefaultGrants maps each role to its permissions. Visit transitions are
// reserved for visitors; admins cannot act on a visit's behalf.
func DefaultGrants() map[shared.Role][]string {
	return map[shared.Role][]string{
		shared.RoleAdmin: {
			PermCatalogView, PermCatalogManage,
			PermQuotationCreate, PermQuotationView, PermQuotationManage, PermQuotationExport,
			PermCustomerView, PermCustomerEdit,
			PermAccountManage, PermVisitorList, PermVisitSchedule,
			PermPaymentView, PermJobsView, PermAuditView,
		},
		shared.RoleDealer: {
			PermCatalogView,
			PermQuotationCreate, PermQuotationView,
			PermCustomerView, PermCustomerEdit,
			PermVisitorList, PermVisitSchedule,
		},
		shared.RoleVisitor: {
			PermVisitPerform,
		},
		shared.RoleAccountManager: {
			PermCatalogView, PermQuotationView, PermQuotationExport, PermPaymentView,
		},
	}
}
