package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "admin"
	UserRoleStaff   = "staff"
	UserRoleKitchen = "kitchen"
)

const (
	OrderSourceCustomer = "customer"
	OrderSourcePOS      = "pos"
)

const (
	OrderTypeDineIn  = "dine-in"
	OrderTypeTakeout = "takeout"
)

const (
	PaymentMethodCash  = "cash"
	PaymentMethodGCash = "gcash"
)

// ── Settings keys (no DB constraint) ──

const (
	SettingGCashNumber = "gcash_number"
	SettingGCashQR     = "gcash_qr"
)
