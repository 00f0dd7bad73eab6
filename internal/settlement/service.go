package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/metrics"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/payment"
	"github.com/iliyamo/lanparty/internal/queue"
	"github.com/iliyamo/lanparty/internal/repository"
)

// Store persists settlements.  Get returns repository.ErrSettlementNotFound
// for guests that have no stored settlement yet.  Save bumps Version and
// UpdatedAt and returns the stored document.
type Store interface {
	ListByEvent(ctx context.Context, eventID uint64) ([]*model.Settlement, error)
	Get(ctx context.Context, eventID, guestID uint64) (*model.Settlement, error)
	Save(ctx context.Context, s *model.Settlement) (*model.Settlement, error)
}

// CostSource assembles the charge snapshot of one guest.
type CostSource interface {
	GuestCost(ctx context.Context, eventID, guestID uint64) (billing.GuestCost, error)
}

// Publisher announces saved settlements.
type Publisher interface {
	PublishSettlement(ctx context.Context, ev queue.SettlementEvent) error
}

// Service executes settlement commands.
type Service struct {
	store     Store
	costs     CostSource
	publisher Publisher
	account   payment.Account
	qrBaseURL string
	logger    *logrus.Logger
	now       func() time.Time
}

// NewService wires a settlement service.  publisher may be nil.
func NewService(store Store, costs CostSource, publisher Publisher, account payment.Account, qrBaseURL string, logger *logrus.Logger) *Service {
	if store == nil || costs == nil || logger == nil {
		panic("settlement: nil dependency")
	}
	return &Service{
		store:     store,
		costs:     costs,
		publisher: publisher,
		account:   account,
		qrBaseURL: qrBaseURL,
		logger:    logger,
		now:       time.Now,
	}
}

// Account is the configured payee account.
func (s *Service) Account() payment.Account { return s.account }

// List returns the stored settlements of an event.
func (s *Service) List(ctx context.Context, eventID uint64) ([]*model.Settlement, error) {
	return s.store.ListByEvent(ctx, eventID)
}

// Get returns the guest's settlement, or an implicit draft.
func (s *Service) Get(ctx context.Context, eventID, guestID uint64) (*model.Settlement, error) {
	st, err := s.store.Get(ctx, eventID, guestID)
	if errors.Is(err, repository.ErrSettlementNotFound) {
		return model.NewDraftSettlement(eventID, guestID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settlement: %w", err)
	}
	return st, nil
}

// Execute applies cmd to the guest's settlement and persists the result.
func (s *Service) Execute(ctx context.Context, eventID, guestID uint64, cmd Command) (*model.Settlement, error) {
	saved, _, err := s.execute(ctx, eventID, guestID, cmd.Action(), func(st *model.Settlement) (*model.Settlement, error) {
		return Apply(st, cmd, s.now())
	})
	return saved, err
}

// Mutate applies one list helper (AddAdjustment, SaveItemOverride, ...) and
// persists the whole settlement as an update.
func (s *Service) Mutate(ctx context.Context, eventID, guestID uint64, fn func(*model.Settlement) (*model.Settlement, error)) (*model.Settlement, error) {
	saved, _, err := s.execute(ctx, eventID, guestID, ActionUpdate, fn)
	return saved, err
}

// QR is the outcome of generating a payment QR.
type QR struct {
	Settlement *model.Settlement `json:"settlement"`
	Amount     decimal.Decimal   `json:"amount"`
	Query      string            `json:"query"`
	ImageURL   string            `json:"image_url"`
	Request    payment.Request   `json:"-"`
}

// GenerateQR moves the settlement to pending and returns the payment
// request for the guest's final total.
func (s *Service) GenerateQR(ctx context.Context, eventID, guestID uint64, vs string) (*QR, error) {
	cmd := GenerateQR{VariableSymbol: vs}
	if err := validate.Struct(cmd); err != nil {
		return nil, invalid("%v", err)
	}
	saved, cost, err := s.execute(ctx, eventID, guestID, cmd.Action(), func(st *model.Settlement) (*model.Settlement, error) {
		return Apply(st, cmd, s.now())
	})
	if err != nil {
		return nil, err
	}
	return s.qr(saved, cost)
}

// PaymentRequest rebuilds the payment request of a settlement whose QR has
// already been generated.
func (s *Service) PaymentRequest(ctx context.Context, eventID, guestID uint64) (*QR, error) {
	cost, err := s.costs.GuestCost(ctx, eventID, guestID)
	if err != nil {
		return nil, err
	}
	st, err := s.Get(ctx, eventID, guestID)
	if err != nil {
		return nil, err
	}
	if st.VariableSymbol == "" {
		return nil, fmt.Errorf("%w: no QR generated yet", ErrInvalidTransition)
	}
	return s.qr(st, cost)
}

func (s *Service) qr(st *model.Settlement, cost billing.GuestCost) (*QR, error) {
	amount := billing.NewAggregator(st).FinalTotal(cost)
	req, err := payment.NewRequest(s.account, amount, st.VariableSymbol, cost.Name)
	if err != nil {
		return nil, err
	}
	return &QR{
		Settlement: st,
		Amount:     amount,
		Query:      req.Query(),
		ImageURL:   req.ImageURL(s.qrBaseURL),
		Request:    req,
	}, nil
}

func (s *Service) execute(ctx context.Context, eventID, guestID uint64, action string, fn func(*model.Settlement) (*model.Settlement, error)) (*model.Settlement, billing.GuestCost, error) {
	cost, err := s.costs.GuestCost(ctx, eventID, guestID)
	if err != nil {
		return nil, billing.GuestCost{}, err
	}
	current, err := s.Get(ctx, eventID, guestID)
	if err != nil {
		return nil, cost, err
	}
	next, err := fn(current)
	if err != nil {
		metrics.SettlementCommands.WithLabelValues(action, "rejected").Inc()
		return nil, cost, err
	}
	next.EventID, next.GuestID = eventID, guestID
	saved, err := s.store.Save(ctx, next)
	if err != nil {
		metrics.SettlementCommands.WithLabelValues(action, "error").Inc()
		return nil, cost, fmt.Errorf("save settlement: %w", err)
	}
	metrics.SettlementCommands.WithLabelValues(action, "ok").Inc()
	s.publish(ctx, action, saved, cost)
	return saved, cost, nil
}

func (s *Service) publish(ctx context.Context, action string, st *model.Settlement, cost billing.GuestCost) {
	if s.publisher == nil {
		return
	}
	ev := queue.SettlementEvent{
		EventID:        st.EventID,
		GuestID:        st.GuestID,
		GuestName:      cost.Name,
		Action:         action,
		Status:         string(st.Status),
		Version:        st.Version,
		VariableSymbol: st.VariableSymbol,
		FinalTotal:     billing.NewAggregator(st).FinalTotal(cost).StringFixed(2),
		OccurredAt:     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishSettlement(ctx, ev); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": st.EventID,
			"guest_id": st.GuestID,
			"action":   action,
		}).Warn("settlement event not published")
	}
}
