package seed

import "github.com/steelforge/erpauth/internal/models"

// Actions available across the catalog.
const (
	ActionCreate  = "CREATE"
	ActionRead    = "READ"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionApprove = "APPROVE"
	ActionAssign  = "ASSIGN"
)

// ERP business modules.
const (
	ModuleManufacturing = "MANUFACTURING"
	ModuleSales         = "SALES"
	ModuleProcurement   = "PROCUREMENT"
	ModuleInventory     = "INVENTORY"
	ModuleFinance       = "FINANCE"
	ModuleHR            = "HR"
	ModuleService       = "SERVICE"
	ModulePortal        = "PORTAL"
	ModuleAdmin         = "ADMIN"
)

// DefaultDefinition is the catalog, branch, and system-role set applied on
// every startup of the ERP backend.
func DefaultDefinition() Definition {
	permissions := []PermissionDef{
		// Wildcard rows referenced by system roles.
		{Module: models.Wildcard, Action: models.Wildcard, Description: "Full system access"},
		{Module: ModuleManufacturing, Action: models.Wildcard, Description: "Full manufacturing access"},
		{Module: ModuleInventory, Action: models.Wildcard, Description: "Full inventory access"},
		{Module: ModuleHR, Action: models.Wildcard, Description: "Full HR access"},
		{Module: ModuleAdmin, Action: models.Wildcard, Description: "Full administration access"},
		{Module: ModuleSales, Action: ActionApprove, Resource: models.Wildcard, Description: "Approve any sales document"},
		{Module: ModuleInventory, Action: ActionApprove, Resource: models.Wildcard, Description: "Approve any inventory document"},
		{Module: ModuleProcurement, Action: ActionApprove, Resource: models.Wildcard, Description: "Approve any procurement document"},
	}

	permissions = append(permissions, crud(ModuleManufacturing, "PRODUCTION_ORDER", "production orders")...)
	permissions = append(permissions, crud(ModuleManufacturing, "WORK_CENTER", "work centers")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleManufacturing, Action: ActionApprove, Resource: "PRODUCTION_ORDER", Description: "Approve production orders"},
		PermissionDef{Module: ModuleManufacturing, Action: ActionRead, Resource: "BOM", Description: "View bills of material"},
	)

	permissions = append(permissions, crud(ModuleSales, "LEAD", "sales leads")...)
	permissions = append(permissions, crud(ModuleSales, "QUOTATION", "quotations")...)
	permissions = append(permissions, crud(ModuleSales, "SALES_ORDER", "sales orders")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleSales, Action: ActionRead, Resource: "CUSTOMER", Description: "View customers"},
	)

	permissions = append(permissions, crud(ModuleProcurement, "PURCHASE_ORDER", "purchase orders")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleProcurement, Action: ActionRead, Resource: "SUPPLIER", Description: "View suppliers"},
	)

	permissions = append(permissions, crud(ModuleInventory, "STOCK_TRANSACTION", "stock transactions")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleInventory, Action: ActionRead, Resource: "STOCK_BALANCE", Description: "View stock balances"},
		PermissionDef{Module: ModuleInventory, Action: ActionUpdate, Resource: "BIN", Description: "Maintain warehouse bins"},
		PermissionDef{Module: ModuleInventory, Action: ActionApprove, Resource: "STOCK_ADJUSTMENT", Description: "Approve stock adjustments"},
	)

	permissions = append(permissions, crud(ModuleFinance, "INVOICE", "invoices")...)
	permissions = append(permissions, crud(ModuleFinance, "PAYMENT", "payments")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleFinance, Action: ActionRead, Resource: "LEDGER", Description: "View the general ledger"},
		PermissionDef{Module: ModuleFinance, Action: ActionApprove, Resource: "PAYMENT", Description: "Approve outgoing payments"},
	)

	permissions = append(permissions, crud(ModuleHR, "EMPLOYEE", "employee records")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleHR, Action: ActionApprove, Resource: "LEAVE_REQUEST", Description: "Approve leave requests"},
	)

	permissions = append(permissions, crud(ModuleService, "SERVICE_TICKET", "service tickets")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleService, Action: ActionAssign, Resource: "SERVICE_TICKET", Description: "Assign service tickets to engineers"},
	)

	permissions = append(permissions,
		PermissionDef{Module: ModulePortal, Action: ActionRead, Resource: "ORDER_STATUS", Description: "Track own order status"},
		PermissionDef{Module: ModulePortal, Action: ActionCreate, Resource: "SUPPORT_TICKET", Description: "Raise support tickets"},
	)

	permissions = append(permissions, crud(ModuleAdmin, "ROLE", "roles")...)
	permissions = append(permissions, crud(ModuleAdmin, "PERMISSION", "catalog permissions")...)
	permissions = append(permissions, crud(ModuleAdmin, "BRANCH", "branches")...)
	permissions = append(permissions,
		PermissionDef{Module: ModuleAdmin, Action: ActionAssign, Resource: "ROLE", Description: "Assign roles to users"},
		PermissionDef{Module: ModuleAdmin, Action: ActionRead, Resource: "AUDIT_LOG", Description: "View audit logs"},
	)

	roles := []RoleDef{
		{
			Name: "SUPER_ADMIN", Description: "Unrestricted access to every module", IsSystem: true,
			Grants: []GrantRef{{Module: models.Wildcard, Action: models.Wildcard}},
		},
		{
			Name: "ADMINISTRATOR", Description: "Manages roles, permissions, branches, and assignments", IsSystem: true,
			Grants: []GrantRef{{Module: ModuleAdmin, Action: models.Wildcard}},
		},
		{
			Name: "PRODUCTION_MANAGER", Description: "Runs the manufacturing floor", IsSystem: true,
			Grants: []GrantRef{{Module: ModuleManufacturing, Action: models.Wildcard}},
		},
		{
			Name: "SALES_EXECUTIVE", Description: "Works leads, quotations, and sales orders", IsSystem: true,
			Grants: []GrantRef{
				{Module: ModuleSales, Action: ActionCreate, Resource: "LEAD"},
				{Module: ModuleSales, Action: ActionRead, Resource: "LEAD"},
				{Module: ModuleSales, Action: ActionUpdate, Resource: "LEAD"},
				{Module: ModuleSales, Action: ActionCreate, Resource: "QUOTATION"},
				{Module: ModuleSales, Action: ActionRead, Resource: "QUOTATION"},
				{Module: ModuleSales, Action: ActionCreate, Resource: "SALES_ORDER"},
				{Module: ModuleSales, Action: ActionRead, Resource: "SALES_ORDER"},
				{Module: ModuleSales, Action: ActionRead, Resource: "CUSTOMER"},
			},
		},
		{
			Name: "STORE_KEEPER", Description: "Records stock movements in the warehouse", IsSystem: true,
			Grants: []GrantRef{
				{Module: ModuleInventory, Action: ActionCreate, Resource: "STOCK_TRANSACTION"},
				{Module: ModuleInventory, Action: ActionRead, Resource: "STOCK_TRANSACTION"},
				{Module: ModuleInventory, Action: ActionRead, Resource: "STOCK_BALANCE"},
				{Module: ModuleInventory, Action: ActionUpdate, Resource: "BIN"},
			},
		},
		{
			Name: "INVENTORY_SUPERVISOR", Description: "Oversees all inventory operations", IsSystem: true,
			Grants: []GrantRef{{Module: ModuleInventory, Action: models.Wildcard}},
		},
		{
			Name: "ACCOUNTANT", Description: "Maintains invoices, payments, and the ledger", IsSystem: true,
			Grants: []GrantRef{
				{Module: ModuleFinance, Action: ActionCreate, Resource: "INVOICE"},
				{Module: ModuleFinance, Action: ActionRead, Resource: "INVOICE"},
				{Module: ModuleFinance, Action: ActionUpdate, Resource: "INVOICE"},
				{Module: ModuleFinance, Action: ActionCreate, Resource: "PAYMENT"},
				{Module: ModuleFinance, Action: ActionRead, Resource: "PAYMENT"},
				{Module: ModuleFinance, Action: ActionRead, Resource: "LEDGER"},
			},
		},
		{
			Name: "HR_MANAGER", Description: "Full human-resources access", IsSystem: true,
			Grants: []GrantRef{{Module: ModuleHR, Action: models.Wildcard}},
		},
		{
			Name: "SERVICE_ENGINEER", Description: "Handles service tickets in the field", IsSystem: true,
			Grants: []GrantRef{
				{Module: ModuleService, Action: ActionCreate, Resource: "SERVICE_TICKET"},
				{Module: ModuleService, Action: ActionRead, Resource: "SERVICE_TICKET"},
				{Module: ModuleService, Action: ActionUpdate, Resource: "SERVICE_TICKET"},
			},
		},
		{
			Name: "BRANCH_MANAGER", Description: "Approves documents across the branch", IsSystem: true,
			Grants: []GrantRef{
				{Module: ModuleSales, Action: ActionApprove, Resource: models.Wildcard},
				{Module: ModuleInventory, Action: ActionApprove, Resource: models.Wildcard},
				{Module: ModuleProcurement, Action: ActionApprove, Resource: models.Wildcard},
			},
		},
		{
			Name: "PORTAL_USER", Description: "Customer portal self-service", IsSystem: true,
			Grants: []GrantRef{
				{Module: ModulePortal, Action: ActionRead, Resource: "ORDER_STATUS"},
				{Module: ModulePortal, Action: ActionCreate, Resource: "SUPPORT_TICKET"},
			},
		},
	}

	branches := []BranchDef{
		{Code: "KL001", Name: "Kuala Lumpur Works", City: "Kuala Lumpur", Country: "MY"},
		{Code: "TN001", Name: "Tanjung Rolling Mill", City: "Tanjung Malim", Country: "MY"},
		{Code: "JB001", Name: "Johor Bahru Sales Office", City: "Johor Bahru", Country: "MY"},
	}

	return Definition{
		Permissions: permissions,
		Branches:    branches,
		Roles:       roles,
	}
}

func crud(module, resource, plural string) []PermissionDef {
	return []PermissionDef{
		{Module: module, Action: ActionCreate, Resource: resource, Description: "Create " + plural},
		{Module: module, Action: ActionRead, Resource: resource, Description: "View " + plural},
		{Module: module, Action: ActionUpdate, Resource: resource, Description: "Update " + plural},
		{Module: module, Action: ActionDelete, Resource: resource, Description: "Delete " + plural},
	}
}
