package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusFinalized = "FINALIZED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	TableStatusFree            = "FREE"
	TableStatusOccupied        = "OCCUPIED"
	TableStatusWaiterRequested = "WAITER_REQUESTED"
	TableStatusBillRequested   = "BILL_REQUESTED"
	TableStatusNewOrder        = "NEW_ORDER"
	TableStatusClosed          = "CLOSED"
)

// ── Roles and capabilities ──

const (
	UserRoleAdmin  = "ADMIN"
	UserRoleWaiter = "WAITER"
)

// Route guards check capabilities; roles map to capability sets at the
// middleware boundary so service code never inspects role strings.
const (
	CapManageOrders = "manage_orders"
	CapManageTables = "manage_tables"
	CapManageMenu   = "manage_menu"
	CapManageStaff  = "manage_staff"
	CapViewReports  = "view_reports"
)

// ── Service request kinds (client-initiated, no DB constraint) ──

const (
	ServiceKindBill   = "bill"
	ServiceKindWaiter = "waiter"
)

// ── Audit actions ──

const (
	AuditOrderCreated      = "order.created"
	AuditOrderTransitioned = "order.transitioned"
	AuditVisitOpened       = "visit.opened"
	AuditVisitTransitioned = "visit.transitioned"
	AuditVisitClosed       = "visit.closed"
)
