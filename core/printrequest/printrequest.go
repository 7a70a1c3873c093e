// Package printrequest runs the 3D printing marketplace: a user uploads a
// model for a maker, the maker quotes it, the user pays the latest quote and
// the maker completes the print.
//
// The stage of a request only moves through Transition, and every move
// appends one event to an insert-only log.
package printrequest

import (
	"context"
	"time"

	"github.com/irsalhamdi/selfcrafted/core/address"
)

type Stage string

const (
	Requested    Stage = "requested"
	Quoted       Stage = "quoted"
	OrderCreated Stage = "order_created"
	Paid         Stage = "paid"
	Completed    Stage = "completed"
	Failed       Stage = "failed"
)

var transitions = map[Stage][]Stage{
	Requested:    {Quoted, Failed},
	Quoted:       {Quoted, OrderCreated, Failed},
	OrderCreated: {Quoted, Paid, Failed},
	Paid:         {Completed, Failed},
}

// CanTransition reports whether a request in stage from may move to to.
func CanTransition(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Stage) Terminal() bool {
	return s == Completed || s == Failed
}

type Role string

const (
	ByUser  Role = "user"
	ByMaker Role = "maker"
)

type ModelData struct {
	Material string  `json:"material" validate:"required,oneof=PLA ABS ASA PETG TPU NYLON"`
	Infill   int     `json:"infill" validate:"gte=0,lte=100"`
	Scale    float64 `json:"scale" validate:"gt=0,lte=10"`
	Color    string  `json:"color"`
	Quantity int     `json:"quantity" validate:"gte=1,lte=100"`
}

type Metadata struct {
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

type Extra struct {
	Quote     int    `json:"quote,omitempty"`
	Amount    int    `json:"amount,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type Event struct {
	Type      Stage     `json:"type"`
	By        Role      `json:"by"`
	Reason    string    `json:"reason"`
	Extra     Extra     `json:"extra"`
	Timestamp time.Time `json:"timestamp"`
}

type PrintRequest struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	CreatorID string           `json:"creatorId"`
	Model     string           `json:"-"`
	ModelData ModelData        `json:"modelData"`
	Metadata  Metadata         `json:"modelMetadata"`
	Stage     Stage            `json:"requestStage"`
	Quote     int              `json:"quote,omitempty"`
	OrderID   string           `json:"orderId,omitempty"`
	PaymentID string           `json:"paymentId,omitempty"`
	Address   *address.Address `json:"address,omitempty"`
	Events    []Event          `json:"events,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// LatestQuote is the amount of the most recent quoted event.
func LatestQuote(events []Event) (int, bool) {
	var (
		quote int
		at    time.Time
		found bool
	)
	for _, e := range events {
		if e.Type != Quoted || e.Extra.Quote <= 0 {
			continue
		}
		if !found || !e.Timestamp.Before(at) {
			quote, at, found = e.Extra.Quote, e.Timestamp, true
		}
	}
	return quote, found
}

// Transition moves a request from From to To when it is still in From (and,
// when MatchOrderID is set, still holds that order). The fields below are
// written along with the stage.
type Transition struct {
	From         Stage
	To           Stage
	MatchOrderID string

	Quote      int
	OrderID    string
	ClearOrder bool
	PaymentID  string
	Address    *address.Address

	Event Event
}

type Filter struct {
	UserID    string
	CreatorID string
	Page      int
	Size      int
}

type Store interface {
	// InsertPrintRequest stores the request along with its first event.
	InsertPrintRequest(ctx context.Context, pr PrintRequest, ev Event) error
	// FetchPrintRequest returns the request with its events, oldest first.
	FetchPrintRequest(ctx context.Context, id string) (PrintRequest, error)
	CountPrintRequestsSince(ctx context.Context, userID string, since time.Time) (int, error)
	// Transition applies t atomically and reports how many rows changed.
	Transition(ctx context.Context, id string, t Transition) (int, error)
	// SetRequestAddress replaces the delivery address of a request still
	// waiting on orderID and reports how many rows changed.
	SetRequestAddress(ctx context.Context, id, orderID string, addr address.Address) (int, error)
	ListPrintRequests(ctx context.Context, f Filter) ([]PrintRequest, error)
	// MakerHistory returns every request of a maker with its events.
	MakerHistory(ctx context.Context, creatorID string) ([]PrintRequest, error)
}
