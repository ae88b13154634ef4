package order

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prodishi/dishi-shop/internal/domain/cart"
)

const (
	bloomCapacity = 100_000
	bloomFPR      = 0.001
)

// Checkout is the state a checkout form opens with.
type Checkout struct {
	Contact Contact
	Token   string
}

// Service encapsulates order submission: draft notifications, validation,
// token lifecycle and delivery to the order endpoint.
type Service struct {
	sessions  SessionStore
	journal   Journal
	submitter Submitter

	demo     bool
	now      func() time.Time
	newToken func() string

	mu        sync.Mutex
	completed *bloom.BloomFilter
	inflight  map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithDemoMode makes Complete acknowledge orders without recording them and
// skips draft notifications. Used when no order endpoint is configured.
func WithDemoMode() Option {
	return func(s *Service) { s.demo = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenGenerator overrides submission token generation.
func WithTokenGenerator(gen func() string) Option {
	return func(s *Service) { s.newToken = gen }
}

// NewService creates an order Service with the required dependencies.
func NewService(
	sessions SessionStore,
	journal Journal,
	submitter Submitter,
	opts ...Option,
) *Service {
	s := &Service{
		sessions:  sessions,
		journal:   journal,
		submitter: submitter,
		now:       time.Now,
		newToken:  func() string { return uuid.New().String() },
		completed: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		inflight:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open loads the saved contact and starts a fresh submission token for the
// session.
func (s *Service) Open(ctx context.Context, session string) (*Checkout, error) {
	c, err := s.sessions.Contact(ctx, session)
	if err != nil {
		return nil, errors.Wrap(err, "load contact")
	}
	token := s.newToken()
	if err := s.sessions.SaveToken(ctx, session, token); err != nil {
		return nil, errors.Wrap(err, "save token")
	}
	return &Checkout{Contact: c, Token: token}, nil
}

// StartDraft sends the abandoned-cart notification once the shopper typed a
// valid email. Delivery failures are logged and otherwise ignored. The
// returned token is empty when the email is not valid.
func (s *Service) StartDraft(
	ctx context.Context,
	session, email string,
	consentAbandoned bool,
	summary *cart.Summary,
	origin Origin,
) (string, error) {
	if !ValidEmail(email) {
		return "", nil
	}
	token, err := s.ensureToken(ctx, session)
	if err != nil {
		return "", err
	}
	if s.demo {
		return token, nil
	}

	lg := zctx.From(ctx)
	if err := s.submitter.Submit(ctx, NewStartPayload(token, email, consentAbandoned, summary, origin)); err != nil {
		lg.Warn("Draft notification failed", zap.String("token", token), zap.Error(err))
		return token, nil
	}
	lg.Debug("Draft notification sent", zap.String("token", token))
	return token, nil
}

// Complete validates the form and submits the order. On failure the token is
// kept so a retry reuses it.
func (s *Service) Complete(
	ctx context.Context,
	session string,
	form *Form,
	summary *cart.Summary,
	origin Origin,
) (*Receipt, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	if summary.Empty() {
		return nil, ErrEmptyCart
	}

	contact := form.Contact
	contact.Phone = NormalizePhone(form.Phone)
	if err := s.sessions.SaveContact(ctx, session, contact); err != nil {
		return nil, errors.Wrap(err, "save contact")
	}

	token, err := s.ensureToken(ctx, session)
	if err != nil {
		return nil, err
	}

	// Only one submission per token may be in progress.
	if !s.reserve(token) {
		return nil, errors.Wrapf(ErrDuplicateSubmission, "token %s is being submitted", token)
	}
	defer s.release(token)

	done, err := s.isCompleted(ctx, token)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, errors.Wrapf(ErrDuplicateSubmission, "token %s", token)
	}

	lg := zctx.From(ctx).With(zap.String("token", token))
	payload := NewCompletePayload(token, form, summary, origin)
	if err := s.submitter.Submit(ctx, payload); err != nil {
		lg.Warn("Order submission failed", zap.Error(err))
		return nil, errors.Wrap(err, "submit order")
	}

	if s.demo {
		return &Receipt{Token: token, Message: DemoMessage}, nil
	}

	rec := &Record{
		Token:     token,
		Session:   session,
		Payload:   *payload,
		CreatedAt: s.now(),
	}
	if err := s.journal.Record(ctx, rec); err != nil {
		// The endpoint already accepted the order.
		lg.Error("Journal record failed", zap.Error(err))
	}
	s.markCompleted(token)

	if err := s.sessions.ClearToken(ctx, session); err != nil {
		lg.Warn("Clear token failed", zap.Error(err))
	}

	lg.Info("Order submitted",
		zap.Int64("total", summary.Total),
		zap.String("coupon", summary.Coupon),
	)
	return &Receipt{Token: token, Message: SuccessMessage}, nil
}

func (s *Service) ensureToken(ctx context.Context, session string) (string, error) {
	token, err := s.sessions.Token(ctx, session)
	if err != nil {
		return "", errors.Wrap(err, "load token")
	}
	if token != "" {
		return token, nil
	}
	token = s.newToken()
	if err := s.sessions.SaveToken(ctx, session, token); err != nil {
		return "", errors.Wrap(err, "save token")
	}
	return token, nil
}

// isCompleted consults the journal only when the bloom filter reports a
// possible hit.
func (s *Service) isCompleted(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	maybe := s.completed.TestString(token)
	s.mu.Unlock()
	if !maybe {
		return false, nil
	}
	ok, err := s.journal.Exists(ctx, token)
	if err != nil {
		return false, errors.Wrap(err, "check journal")
	}
	return ok, nil
}

func (s *Service) reserve(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[token]; busy {
		return false
	}
	s.inflight[token] = struct{}{}
	return true
}

func (s *Service) release(token string) {
	s.mu.Lock()
	delete(s.inflight, token)
	s.mu.Unlock()
}

func (s *Service) markCompleted(token string) {
	s.mu.Lock()
	s.completed.AddString(token)
	s.mu.Unlock()
}

// Preload seeds the completed-token filter, typically from the journal at
// startup.
func (s *Service) Preload(tokens []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tokens {
		s.completed.AddString(t)
	}
}
