package domain

// ValidationKind selects what Validate checks.
type ValidationKind string

const (
	KindName  ValidationKind = "name"
	KindPhone ValidationKind = "phone"
)

// Validation is the verdict on a piece of client input.
type Validation struct {
	Valid   bool
	Value   string
	Message string
}

// BookingIntent is the structured reading of a conversation window.
type BookingIntent struct {
	Ready   bool
	Service string
	Master  string
	Price   int64
	Date    string
	Time    string
	Reason  string
}

// Draft converts the intent into booking fields.
func (i BookingIntent) Draft(duration int) Draft {
	return Draft{
		Service:  i.Service,
		Master:   i.Master,
		Price:    i.Price,
		Date:     i.Date,
		Time:     i.Time,
		Duration: duration,
	}
}

// SlotQuery is an availability question raised during the dialogue.
type SlotQuery struct {
	Master string
	Date   string
	Time   string
}
