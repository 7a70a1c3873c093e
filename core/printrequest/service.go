package printrequest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/irsalhamdi/selfcrafted/blob"
	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/core/user"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/irsalhamdi/selfcrafted/validate"
	"github.com/sirupsen/logrus"
)

const (
	modelExt         = ".stl"
	modelContentType = "model/stl"
	maxPageSize      = 50
)

type Config struct {
	DailyLimit int
	Currency   string
	URLTTL     time.Duration
}

type Service struct {
	store     Store
	users     user.Store
	purchases purchase.Store
	blobs     blob.Store
	gw        payment.Gateway
	cfg       Config
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(st Store, users user.Store, purchases purchase.Store, blobs blob.Store, gw payment.Gateway, cfg Config, log logrus.FieldLogger) *Service {
	return &Service{
		store:     st,
		users:     users,
		purchases: purchases,
		blobs:     blobs,
		gw:        gw,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type Submission struct {
	CreatorID string    `json:"creatorId" validate:"required,uuid"`
	ModelData ModelData `json:"modelData"`
}

// Upload is the model file sent with a submission.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

type Payment struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

type Confirmed struct {
	ID               string `json:"id"`
	Amount           int    `json:"amount"`
	AlreadyConfirmed bool   `json:"alreadyConfirmed"`
}

type Stats struct {
	MakerID         string         `json:"makerId"`
	CompletedOrders int            `json:"completedOrders"`
	AvgQuoteTime    *int64         `json:"avgQuoteTime"`
	MaterialsUsed   map[string]int `json:"materialsUsed"`
}

// Submit stores the model and opens a request with the chosen maker. Users
// may open a limited number of requests per day.
func (s *Service) Submit(ctx context.Context, userID string, sub Submission, up Upload) (PrintRequest, error) {
	if !strings.EqualFold(path.Ext(up.Name), modelExt) {
		return PrintRequest{}, fault.Validation("only .stl files are accepted")
	}
	if err := validate.Check(sub); err != nil {
		return PrintRequest{}, &fault.ValidationError{Message: err.Error()}
	}

	maker, err := user.Fetch(ctx, s.users, sub.CreatorID)
	if err != nil {
		return PrintRequest{}, err
	}
	if maker.Role != claims.RoleMaker {
		return PrintRequest{}, fault.Validation("the chosen user does not take print requests")
	}

	u, err := user.Fetch(ctx, s.users, userID)
	if err != nil {
		return PrintRequest{}, err
	}
	limit := u.QuoteDailyLimit
	if limit <= 0 {
		limit = s.cfg.DailyLimit
	}

	now := s.now()
	n, err := s.store.CountPrintRequestsSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return PrintRequest{}, fmt.Errorf("counting print requests of user[%s]: %w", userID, err)
	}
	if n >= limit {
		return PrintRequest{}, &fault.QuotaExceededError{Limit: limit}
	}

	id := validate.GenerateID()
	key := fmt.Sprintf("%s/%s%s", userID, id, modelExt)
	if err := s.blobs.Put(ctx, key, up.Body, modelContentType); err != nil {
		return PrintRequest{}, fmt.Errorf("storing model of print request[%s]: %w", id, err)
	}

	pr := PrintRequest{
		ID:        id,
		UserID:    userID,
		CreatorID: maker.ID,
		Model:     key,
		ModelData: sub.ModelData,
		Metadata:  Metadata{FileName: path.Base(up.Name), Size: up.Size},
		Stage:     Requested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ev := Event{Type: Requested, By: ByUser, Reason: "Print request submitted", Timestamp: now}

	if err := s.store.InsertPrintRequest(ctx, pr, ev); err != nil {
		return PrintRequest{}, fmt.Errorf("inserting print request[%s]: %w", id, err)
	}
	pr.Events = []Event{ev}
	return pr, nil
}

// Show returns a request to either of its parties.
func (s *Service) Show(ctx context.Context, actorID, id string) (PrintRequest, error) {
	pr, err := s.fetch(ctx, id)
	if err != nil {
		return PrintRequest{}, err
	}
	if _, ok := party(pr, actorID); !ok {
		return PrintRequest{}, fault.NotFound("print request", id)
	}
	return pr, nil
}

func (s *Service) Quote(ctx context.Context, makerID, id string, amount int, reason string) (PrintRequest, error) {
	if amount <= 0 {
		return PrintRequest{}, fault.Validation("quote must be greater than zero")
	}

	pr, err := s.fetchForMaker(ctx, makerID, id)
	if err != nil {
		return PrintRequest{}, err
	}

	if reason == "" {
		reason = fmt.Sprintf("Quoted %d", amount)
	}
	t := Transition{
		From:       pr.Stage,
		To:         Quoted,
		Quote:      amount,
		ClearOrder: pr.Stage == OrderCreated,
		Event:      Event{Type: Quoted, By: ByMaker, Reason: reason, Extra: Extra{Quote: amount}},
	}
	return s.transition(ctx, pr, t)
}

// CreateOrder mints a gateway order for the latest quote. The amount the
// client saw must match that quote.
func (s *Service) CreateOrder(ctx context.Context, userID, id string, addr address.Address, amount int) (Payment, error) {
	pr, err := s.fetchForUser(ctx, userID, id)
	if err != nil {
		return Payment{}, err
	}

	quote, ok := LatestQuote(pr.Events)
	if !ok {
		return Payment{}, fault.Validation("No valid quote found for this request")
	}
	if amount != quote {
		return Payment{}, &fault.AmountMismatchError{Expected: quote, Got: amount}
	}

	addr, err = address.Validate(addr)
	if err != nil {
		return Payment{}, err
	}

	out := Payment{Amount: int64(quote) * 100, Currency: s.cfg.Currency, KeyID: s.gw.KeyID()}

	if pr.Stage == OrderCreated && pr.OrderID != "" {
		n, err := s.store.SetRequestAddress(ctx, pr.ID, pr.OrderID, addr)
		if err != nil {
			return Payment{}, fmt.Errorf("updating address of print request[%s]: %w", pr.ID, err)
		}
		if n == 0 {
			return Payment{}, fault.Conflict("print request changed concurrently, please retry")
		}
		out.OrderID = pr.OrderID
		return out, nil
	}
	if !CanTransition(pr.Stage, OrderCreated) {
		return Payment{}, fault.Conflict("print request is %s", pr.Stage)
	}

	ord, err := s.gw.CreateOrder(ctx, out.Amount, s.cfg.Currency, pr.ID)
	if err != nil {
		return Payment{}, payment.AsError(err)
	}

	t := Transition{
		From:    pr.Stage,
		To:      OrderCreated,
		OrderID: ord.ID,
		Address: &addr,
		Event: Event{
			Type:   OrderCreated,
			By:     ByUser,
			Reason: fmt.Sprintf("Payment for 3D Print Request of amount %d", quote),
			Extra:  Extra{Amount: quote, OrderID: ord.ID},
		},
	}
	if _, err := s.transition(ctx, pr, t); err != nil {
		s.log.WithFields(logrus.Fields{"order_id": ord.ID, "print_request_id": pr.ID}).Warn("gateway order orphaned, reconcile with the provider")
		return Payment{}, err
	}

	out.OrderID = ord.ID
	return out, nil
}

// Confirm settles the pending order of a request and records the purchase.
// Repeated calls for the same order succeed with AlreadyConfirmed set.
func (s *Service) Confirm(ctx context.Context, id identity.Identity, prID string, cf payment.Confirmation) (Confirmed, error) {
	if !cf.Complete() {
		return Confirmed{}, fault.Validation("invalid payment details")
	}

	pr, err := s.fetchForUser(ctx, id.UserID, prID)
	if err != nil {
		return Confirmed{}, err
	}

	if err := s.gw.Verify(ctx, cf); err != nil {
		if errors.Is(err, payment.ErrSignature) {
			return Confirmed{}, fault.Validation("payment could not be verified")
		}
		return Confirmed{}, payment.AsError(err)
	}

	quote, ok := LatestQuote(pr.Events)
	if !ok {
		return Confirmed{}, fault.Validation("No valid quote found for this request")
	}
	if cf.Amount != 0 && cf.Amount != int64(quote)*100 {
		return Confirmed{}, &fault.AmountMismatchError{Expected: quote, Got: int(cf.Amount / 100)}
	}

	t := Transition{
		From:         OrderCreated,
		To:           Paid,
		MatchOrderID: cf.OrderID,
		PaymentID:    cf.PaymentID,
		Event: Event{
			Type:   Paid,
			By:     ByUser,
			Reason: "Payment verified for 3D Print Request",
			Extra:  Extra{Amount: quote, OrderID: cf.OrderID, PaymentID: cf.PaymentID, Signature: cf.Signature},
		},
	}
	t.Event.Timestamp = s.now()

	n, err := s.store.Transition(ctx, pr.ID, t)
	if err != nil {
		return Confirmed{}, fmt.Errorf("marking print request[%s] paid: %w", pr.ID, err)
	}
	if n == 0 {
		cur, err := s.fetch(ctx, pr.ID)
		if err != nil {
			return Confirmed{}, err
		}
		if cur.OrderID == cf.OrderID && (cur.Stage == Paid || cur.Stage == Completed) {
			return Confirmed{ID: cur.ID, Amount: quote, AlreadyConfirmed: true}, nil
		}
		if cur.OrderID != cf.OrderID {
			return Confirmed{}, fault.NotFound("order", cf.OrderID)
		}
		return Confirmed{}, fault.Conflict("print request is %s", cur.Stage)
	}

	p := purchase.Purchase{
		PaymentStatus:    purchase.StatusPaid,
		PaymentMethod:    s.gw.Name() + purchase.MethodPrintRequest,
		PaymentID:        cf.OrderID,
		PaymentIDB:       cf.PaymentID,
		PaymentSignature: cf.Signature,
		Amount:           quote,
		BillingAddress:   pr.Address,
		ShippingAddress:  pr.Address,
		CartID:           pr.ID,
		ClientID:         id.ClientID,
		UID:              pr.UserID,
		Items: []purchase.Item{{
			ProductID: pr.ID,
			Name:      "3D print: " + pr.Metadata.FileName,
			Qty:       max(pr.ModelData.Quantity, 1),
			Price:     quote,
		}},
	}
	if _, err := s.purchases.InsertPurchase(ctx, p); err != nil {
		s.log.WithFields(logrus.Fields{"print_request_id": pr.ID, "order_id": cf.OrderID, "error": err}).Warn("recording purchase after payment")
	}

	return Confirmed{ID: pr.ID, Amount: quote}, nil
}

func (s *Service) Complete(ctx context.Context, makerID, id string) (PrintRequest, error) {
	pr, err := s.fetchForMaker(ctx, makerID, id)
	if err != nil {
		return PrintRequest{}, err
	}

	t := Transition{
		From:  pr.Stage,
		To:    Completed,
		Event: Event{Type: Completed, By: ByMaker, Reason: "Print completed"},
	}
	return s.transition(ctx, pr, t)
}

// Cancel fails a request on behalf of either party.
func (s *Service) Cancel(ctx context.Context, actorID, id, reason string) (PrintRequest, error) {
	pr, err := s.fetch(ctx, id)
	if err != nil {
		return PrintRequest{}, err
	}
	by, ok := party(pr, actorID)
	if !ok {
		return PrintRequest{}, fault.NotFound("print request", id)
	}

	if reason == "" {
		reason = "Cancelled by " + string(by)
	}
	t := Transition{
		From:  pr.Stage,
		To:    Failed,
		Event: Event{Type: Failed, By: by, Reason: reason},
	}
	return s.transition(ctx, pr, t)
}

// ModelURL links to the model file for a short while. Only the parties of
// the request may download it.
func (s *Service) ModelURL(ctx context.Context, actorID, id string) (string, error) {
	pr, err := s.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	if _, ok := party(pr, actorID); !ok {
		return "", fault.Forbidden("only the requester and the maker may download the model")
	}

	u, err := s.blobs.SignedURL(ctx, pr.Model, s.cfg.URLTTL)
	if err != nil {
		return "", fmt.Errorf("signing model url of print request[%s]: %w", id, err)
	}
	return u, nil
}

func (s *Service) ListForMaker(ctx context.Context, makerID string, page, size int) ([]PrintRequest, error) {
	return s.list(ctx, Filter{CreatorID: makerID, Page: page, Size: size})
}

func (s *Service) ListForUser(ctx context.Context, userID string, page, size int) ([]PrintRequest, error) {
	return s.list(ctx, Filter{UserID: userID, Page: page, Size: size})
}

// MakerStats summarises the completed requests of a maker. AvgQuoteTime is
// the mean number of seconds between a request and its first quote.
func (s *Service) MakerStats(ctx context.Context, makerID string) (Stats, error) {
	prs, err := s.store.MakerHistory(ctx, makerID)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching history of maker[%s]: %w", makerID, err)
	}

	st := Stats{MakerID: makerID, MaterialsUsed: make(map[string]int)}
	var total time.Duration
	var quoted int

	for _, pr := range prs {
		if pr.Stage != Completed {
			continue
		}
		st.CompletedOrders++

		if pr.ModelData.Material != "" {
			st.MaterialsUsed[pr.ModelData.Material]++
		}

		for _, e := range pr.Events {
			if e.Type == Quoted {
				total += e.Timestamp.Sub(pr.CreatedAt)
				quoted++
				break
			}
		}
	}

	if quoted > 0 {
		avg := int64((total / time.Duration(quoted)).Round(time.Second) / time.Second)
		st.AvgQuoteTime = &avg
	}
	return st, nil
}

func (s *Service) list(ctx context.Context, f Filter) ([]PrintRequest, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size < 1 || f.Size > maxPageSize {
		f.Size = maxPageSize
	}

	prs, err := s.store.ListPrintRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing print requests: %w", err)
	}
	return prs, nil
}

// transition checks the table, applies t and returns the updated request.
func (s *Service) transition(ctx context.Context, pr PrintRequest, t Transition) (PrintRequest, error) {
	if t.From.Terminal() {
		return PrintRequest{}, fault.Conflict("print request is already %s", t.From)
	}
	if !CanTransition(t.From, t.To) {
		return PrintRequest{}, fault.Conflict("print request cannot move from %s to %s", t.From, t.To)
	}
	if t.Event.Timestamp.IsZero() {
		t.Event.Timestamp = s.now()
	}

	n, err := s.store.Transition(ctx, pr.ID, t)
	if err != nil {
		return PrintRequest{}, fmt.Errorf("moving print request[%s] to %s: %w", pr.ID, t.To, err)
	}
	if n == 0 {
		return PrintRequest{}, fault.Conflict("print request changed concurrently, please retry")
	}

	return s.fetch(ctx, pr.ID)
}

func (s *Service) fetch(ctx context.Context, id string) (PrintRequest, error) {
	if err := validate.CheckID(id); err != nil {
		return PrintRequest{}, fault.NotFound("print request", id)
	}

	pr, err := s.store.FetchPrintRequest(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return PrintRequest{}, fault.NotFound("print request", id)
	}
	if err != nil {
		return PrintRequest{}, fmt.Errorf("fetching print request[%s]: %w", id, err)
	}
	return pr, nil
}

func (s *Service) fetchForUser(ctx context.Context, userID, id string) (PrintRequest, error) {
	pr, err := s.fetch(ctx, id)
	if err != nil {
		return PrintRequest{}, err
	}
	if pr.UserID != userID {
		return PrintRequest{}, fault.NotFound("print request", id)
	}
	return pr, nil
}

func (s *Service) fetchForMaker(ctx context.Context, makerID, id string) (PrintRequest, error) {
	pr, err := s.fetch(ctx, id)
	if err != nil {
		return PrintRequest{}, err
	}
	if pr.CreatorID != makerID {
		return PrintRequest{}, fault.NotFound("print request", id)
	}
	return pr, nil
}

func party(pr PrintRequest, actorID string) (Role, bool) {
	switch actorID {
	case "":
		return "", false
	case pr.UserID:
		return ByUser, true
	case pr.CreatorID:
		return ByMaker, true
	}
	return "", false
}
