package domain

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderInProgress OrderStatus = "in_progress"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// SchedulableOrderStatuses are the order states the schedule generator plans visits for.
var SchedulableOrderStatuses = []OrderStatus{OrderConfirmed, OrderInProgress}

// Order is read-only to the core apart from delivered/cancelled status transitions.
// Location is the geo-destination of the order's store.
type Order struct {
	ID            int64
	DistributorID int64
	StoreID       int64
	Location      *Coordinates
	Priority      int
	Status        OrderStatus
	DeliveryDate  time.Time
}

// Store is a delivery destination owned by the store subsystem.
type Store struct {
	ID       int64
	Name     string
	Address  string
	Location *Coordinates
}
