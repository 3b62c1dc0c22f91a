package billing

// PaymentType distinguishes recurring fees from one-off charges.
type PaymentType string

const (
	PaymentTypeMonthlyFee    PaymentType = "MONTHLY_FEE"
	PaymentTypeEnrollmentFee PaymentType = "ENROLLMENT_FEE"
	PaymentTypeOther         PaymentType = "OTHER"
)

// PaymentStatus is the persisted state of a Payment.
// DUE_SOON is never stored; it only exists as a Classification.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusOverdue   PaymentStatus = "OVERDUE"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
)
