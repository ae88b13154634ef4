package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for order submission.
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrDuplicateSubmission = errors.New("order already submitted")
)

// Messages shown to the shopper.
const (
	SuccessMessage      = "Hvala! Porudžbina je primljena. Uskoro stiže potvrda."
	DemoMessage         = "Demo: podaci su spremni (server još nije povezan)."
	DefaultRejectReason = "Greška na serveru."
	FallbackMessage     = "Nešto nije u redu. Pokušajte ponovo."
)

// RejectedError is returned when the order endpoint answers without ok.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return DefaultRejectReason
	}
	return e.Reason
}

// Contact is the part of the form remembered between visits.
type Contact struct {
	Email      string
	Phone      string
	FirstName  string
	LastName   string
	Address    string
	PostalCode string
	City       string
}

// Form is the checkout form as submitted.
type Form struct {
	Contact

	Note             string
	ConsentShipping  bool
	ConsentAbandoned bool
}

// Origin describes where the shopper came from: the page path and the raw
// query string carrying campaign parameters.
type Origin struct {
	Source string
	UTM    string
}

// Record is a completed order as kept in the journal.
type Record struct {
	Token     string
	Session   string
	Payload   Payload
	CreatedAt time.Time
}

// Receipt is returned to the shopper after a successful submission.
type Receipt struct {
	Token   string
	Message string
}

// Submitter delivers payloads to the order endpoint.
type Submitter interface {
	Submit(ctx context.Context, p *Payload) error
}

// SessionStore keeps per-session checkout state: the saved contact and the
// pending submission token. Missing data yields zero values, not errors.
type SessionStore interface {
	Contact(ctx context.Context, session string) (Contact, error)
	SaveContact(ctx context.Context, session string, c Contact) error
	Token(ctx context.Context, session string) (string, error)
	SaveToken(ctx context.Context, session, token string) error
	ClearToken(ctx context.Context, session string) error
}

// Journal records completed orders. Record returns ErrDuplicateSubmission
// when the token was already recorded.
type Journal interface {
	Record(ctx context.Context, r *Record) error
	Exists(ctx context.Context, token string) (bool, error)
}
