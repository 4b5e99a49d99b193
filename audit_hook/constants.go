package audithook

// Action constants for audit events.
const (
	// Sale actions
	ActionSaleCompleted = "sale.completed"
	ActionSaleFailed    = "sale.failed"

	// Bill actions
	ActionBillRevised = "bill.revised"
	ActionBillDeleted = "bill.deleted"

	// Customer actions
	ActionCustomerCreated = "customer.created"

	// Integration actions
	ActionPaymentReceived  = "payment.received"
	ActionBookingConfirmed = "booking.confirmation_sent"
)

// Resource constants for audit events.
const (
	ResourceBill     = "bill"
	ResourceTerminal = "terminal"
	ResourceCustomer = "customer"
	ResourcePayment  = "payment"
	ResourceBooking  = "booking"
)

// Category constants for audit events.
const (
	CategoryBilling     = "billing"
	CategoryCustomer    = "customer"
	CategoryPayment     = "payment"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
