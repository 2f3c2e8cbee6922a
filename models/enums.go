package models

// OrderStatus tracks an order through its delivery lifecycle.
// Only the first three states accept new remisiones.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusValidated OrderStatus = "validated"
	OrderStatusScheduled OrderStatus = "scheduled"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OpenOrderStatuses are the statuses an order can be in and still receive
// delivery records. Orders outside this set are immutable targets.
func OpenOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusCreated, OrderStatusValidated, OrderStatusScheduled}
}

func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderStatusCreated, OrderStatusValidated, OrderStatusScheduled:
		return true
	}
	return false
}

type CreditStatus string

const (
	CreditStatusPending  CreditStatus = "pending"
	CreditStatusApproved CreditStatus = "approved"
	CreditStatusRejected CreditStatus = "rejected"
)

// DuplicateStrategy marks how a staging record recognized as a duplicate of
// an already-imported delivery should be handled. MaterialsOnly records are
// retained solely to refresh material-consumption data and must never enter
// matching or persistence of the order graph.
type DuplicateStrategy string

const (
	DuplicateStrategyNone          DuplicateStrategy = ""
	DuplicateStrategyMaterialsOnly DuplicateStrategy = "materials_only"
	DuplicateStrategyMerge         DuplicateStrategy = "merge"
	DuplicateStrategySkip          DuplicateStrategy = "skip"
)

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

type RemisionStatus string

const (
	RemisionStatusTerminado  RemisionStatus = "terminado"
	RemisionStatusIncompleto RemisionStatus = "terminado incompleto"
	RemisionStatusCancelado  RemisionStatus = "cancelado"
	RemisionStatusPendiente  RemisionStatus = "pendiente"
)
