package events

// ReservedCustomerPrefix marks user-study customers. Their events are uploaded
// through a separate path and must not shift the ordinal resume offset.
const ReservedCustomerPrefix = "user-study"

const (
	FieldTime       = "time"
	FieldCustomer   = "customer"
	FieldNamespace  = "namespace"
	FieldEvent      = "event"
	FieldAdditional = "additional"
)

// Fields lists the CSV header names and destination columns, in insert order.
var Fields = []string{FieldTime, FieldCustomer, FieldNamespace, FieldEvent, FieldAdditional}

type AnalyticsEvent struct {
	Time       string `db:"time" bson:"time"`
	Customer   string `db:"customer" bson:"customer"`
	Namespace  string `db:"namespace" bson:"namespace"`
	Event      string `db:"event" bson:"event"`
	Additional string `db:"additional" bson:"additional"`
}

// Values returns the event's column values in the order of Fields.
func (e AnalyticsEvent) Values() []interface{} {
	return []interface{}{e.Time, e.Customer, e.Namespace, e.Event, e.Additional}
}
