package datastore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/core/order"
	"github.com/irsalhamdi/selfcrafted/core/printrequest"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/core/user"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/payment"
)

// Memory keeps every row in maps behind one mutex. Values are copied on the
// way in and out so callers never share slices with the store.
type Memory struct {
	mu        sync.Mutex
	users     map[string]user.User
	products  map[string]product.Product
	carts     map[string]cart.Cart
	purchases []purchase.Purchase
	requests  map[string]printrequest.PrintRequest
	events    map[string][]printrequest.Event
	addresses map[string][]address.Address
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]user.User),
		products:  make(map[string]product.Product),
		carts:     make(map[string]cart.Cart),
		requests:  make(map[string]printrequest.PrintRequest),
		events:    make(map[string][]printrequest.Event),
		addresses: make(map[string][]address.Address),
	}
}

// =============================================================================
// Products

func (m *Memory) FetchProduct(_ context.Context, id string) (product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return product.Product{}, database.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (m *Memory) ListProducts(_ context.Context, page, size int) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		all = append(all, cloneProduct(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, page, size), nil
}

func (m *Memory) CreateProduct(_ context.Context, p product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; ok {
		return database.ErrDuplicate
	}
	m.products[p.ID] = cloneProduct(p)
	return nil
}

func (m *Memory) SetStock(_ context.Context, id string, stock product.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return database.ErrNotFound
	}
	p.Stock = stock
	p.UpdatedAt = time.Now().UTC()
	m.products[id] = p
	return nil
}

func (m *Memory) DecreaseStock(_ context.Context, id string, qty int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok || p.Stock.Count < qty {
		return 0, nil
	}
	p.Stock.Count -= qty
	p.Stock.Status = product.StockStatus(p.Stock.Count)
	p.UpdatedAt = time.Now().UTC()
	m.products[id] = p
	return 1, nil
}

// =============================================================================
// Carts

func (m *Memory) GetCartByUID(_ context.Context, clientID, uid string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		best  cart.Cart
		found bool
	)
	for _, c := range m.carts {
		if c.Status != cart.StatusActive {
			continue
		}
		owned := uid != "" && c.UID == uid
		guest := c.ClientID == clientID && c.UID == ""
		if !owned && !guest {
			continue
		}

		if !found || prefer(c, best) {
			best, found = c, true
		}
	}

	if !found {
		return cart.Cart{}, database.ErrNotFound
	}
	return cloneCart(best), nil
}

// prefer orders carts the way get_cart_by_uid does: user carts first, then
// the oldest.
func prefer(c, best cart.Cart) bool {
	if (c.UID != "") != (best.UID != "") {
		return c.UID != ""
	}
	return c.CreatedAt.Before(best.CreatedAt)
}

func (m *Memory) CreateCart(_ context.Context, c cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.carts {
		if o.Status != cart.StatusActive {
			continue
		}
		if c.UID == "" && o.UID == "" && o.ClientID == c.ClientID {
			return nil
		}
		if c.UID != "" && o.UID == c.UID {
			return nil
		}
	}
	m.carts[c.ID] = cloneCart(c)
	return nil
}

func (m *Memory) UpdateCartByID(_ context.Context, clientID, cartID string, items []cart.Item, status, uid string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[cartID]
	if !ok || c.Status != cart.StatusActive {
		return 0, nil
	}
	caller := identity.Identity{ClientID: clientID, UserID: uid}
	if !caller.Owns(c.ClientID, c.UID) {
		return 0, nil
	}

	c.Items = append([]cart.Item{}, items...)
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	m.carts[cartID] = c
	return 1, nil
}

func (m *Memory) AttachCartUser(_ context.Context, clientID, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.carts {
		if c.Status == cart.StatusActive && c.UID == uid {
			return nil
		}
	}
	for id, c := range m.carts {
		if c.Status == cart.StatusActive && c.UID == "" && c.ClientID == clientID {
			c.UID = uid
			c.UpdatedAt = time.Now().UTC()
			m.carts[id] = c
		}
	}
	return nil
}

// =============================================================================
// Checkout

func (m *Memory) FetchCart(_ context.Context, id string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[id]
	if !ok {
		return cart.Cart{}, database.ErrNotFound
	}
	return cloneCart(c), nil
}

func (m *Memory) FetchCartByOrder(_ context.Context, orderID string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.carts {
		if c.PaymentIDA == orderID {
			return cloneCart(c), nil
		}
	}
	return cart.Cart{}, database.ErrNotFound
}

func (m *Memory) SetCartOrder(_ context.Context, cartID, prevOrderID string, up order.OrderUp) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[cartID]
	if !ok || c.Status != cart.StatusActive || c.PaymentIDA != prevOrderID {
		return 0, nil
	}
	for id, o := range m.carts {
		if id != cartID && o.PaymentIDA == up.OrderID {
			return 0, database.ErrDuplicate
		}
	}

	addr := up.Address
	c.PaymentIDA = up.OrderID
	c.Price = up.Price
	c.Address = &addr
	c.OrderItems = append([]cart.Item{}, up.Items...)
	c.UpdatedAt = time.Now().UTC()
	m.carts[cartID] = c
	return 1, nil
}

func (m *Memory) SetCartAddress(_ context.Context, cartID, orderID string, addr address.Address) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[cartID]
	if !ok || c.Status != cart.StatusActive || c.PaymentIDA != orderID {
		return 0, nil
	}
	c.Address = &addr
	c.UpdatedAt = time.Now().UTC()
	m.carts[cartID] = c
	return 1, nil
}

func (m *Memory) MarkCartPaid(_ context.Context, cf payment.Confirmation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for id, c := range m.carts {
		if c.PaymentIDA != cf.OrderID || c.Status != cart.StatusActive {
			continue
		}
		c.Status = cart.StatusPaid
		c.PaymentIDB = cf.PaymentID
		c.PaymentSignature = cf.Signature
		c.UpdatedAt = time.Now().UTC()
		m.carts[id] = c
		n++
	}
	return n, nil
}

func (m *Memory) MarkCartFailed(_ context.Context, cartID, orderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[cartID]
	if !ok || c.Status != cart.StatusActive || c.PaymentIDA != orderID {
		return 0, nil
	}
	c.Status = cart.StatusFailed
	c.UpdatedAt = time.Now().UTC()
	m.carts[cartID] = c
	return 1, nil
}

// =============================================================================
// Purchases

func (m *Memory) InsertPurchase(_ context.Context, p purchase.Purchase) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.purchases {
		if o.PaymentID == p.PaymentID {
			return 0, database.ErrDuplicate
		}
	}

	p.ID = int64(len(m.purchases) + 1)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Items = append([]purchase.Item{}, p.Items...)
	m.purchases = append(m.purchases, p)
	return p.ID, nil
}

func (m *Memory) ListPurchasesByUser(_ context.Context, uid string) ([]purchase.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []purchase.Purchase{}
	for i := len(m.purchases) - 1; i >= 0; i-- {
		if p := m.purchases[i]; p.UID == uid {
			p.Items = append([]purchase.Item{}, p.Items...)
			out = append(out, p)
		}
	}
	return out, nil
}

// Purchases returns every purchase, oldest first.
func (m *Memory) Purchases() []purchase.Purchase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]purchase.Purchase{}, m.purchases...)
}

// =============================================================================
// Users

func (m *Memory) CreateUser(_ context.Context, u user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.users {
		if o.Email == u.Email {
			return database.ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) FetchUser(_ context.Context, id string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return user.User{}, database.ErrNotFound
	}
	return u, nil
}

func (m *Memory) FetchUserByEmail(_ context.Context, email string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, database.ErrNotFound
}

func (m *Memory) ListAddresses(_ context.Context, uid string) ([]address.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]address.Address{}, m.addresses[uid]...), nil
}

func (m *Memory) AddAddress(_ context.Context, uid string, a address.Address, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[uid]; !ok || len(m.addresses[uid]) >= limit {
		return 0, nil
	}
	m.addresses[uid] = append(m.addresses[uid], a)
	return 1, nil
}

// =============================================================================
// Print requests

func (m *Memory) InsertPrintRequest(_ context.Context, pr printrequest.PrintRequest, ev printrequest.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[pr.ID]; ok {
		return database.ErrDuplicate
	}
	pr.Events = nil
	m.requests[pr.ID] = pr
	m.events[pr.ID] = []printrequest.Event{ev}
	return nil
}

func (m *Memory) FetchPrintRequest(_ context.Context, id string) (printrequest.PrintRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.requests[id]
	if !ok {
		return printrequest.PrintRequest{}, database.ErrNotFound
	}
	pr.Events = append([]printrequest.Event{}, m.events[id]...)
	return pr, nil
}

func (m *Memory) CountPrintRequestsSince(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for _, pr := range m.requests {
		if pr.UserID == userID && !pr.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Transition(_ context.Context, id string, t printrequest.Transition) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.requests[id]
	if !ok || pr.Stage != t.From {
		return 0, nil
	}
	if t.MatchOrderID != "" && pr.OrderID != t.MatchOrderID {
		return 0, nil
	}

	pr.Stage = t.To
	if t.Quote > 0 {
		pr.Quote = t.Quote
	}
	if t.ClearOrder {
		pr.OrderID = ""
	}
	if t.OrderID != "" {
		pr.OrderID = t.OrderID
	}
	if t.PaymentID != "" {
		pr.PaymentID = t.PaymentID
	}
	if t.Address != nil {
		addr := *t.Address
		pr.Address = &addr
	}
	pr.UpdatedAt = t.Event.Timestamp

	m.requests[id] = pr
	m.events[id] = append(m.events[id], t.Event)
	return 1, nil
}

func (m *Memory) SetRequestAddress(_ context.Context, id, orderID string, addr address.Address) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.requests[id]
	if !ok || pr.Stage != printrequest.OrderCreated || pr.OrderID != orderID {
		return 0, nil
	}
	pr.Address = &addr
	pr.UpdatedAt = time.Now().UTC()
	m.requests[id] = pr
	return 1, nil
}

func (m *Memory) ListPrintRequests(_ context.Context, f printrequest.Filter) ([]printrequest.PrintRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []printrequest.PrintRequest
	for _, pr := range m.requests {
		if f.UserID != "" && pr.UserID != f.UserID {
			continue
		}
		if f.CreatorID != "" && pr.CreatorID != f.CreatorID {
			continue
		}
		all = append(all, pr)
	}
	sortRequests(all)
	return paginate(all, f.Page, f.Size), nil
}

func (m *Memory) MakerHistory(_ context.Context, creatorID string) ([]printrequest.PrintRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []printrequest.PrintRequest
	for id, pr := range m.requests {
		if pr.CreatorID == creatorID {
			pr.Events = append([]printrequest.Event{}, m.events[id]...)
			all = append(all, pr)
		}
	}
	sortRequests(all)
	return all, nil
}

func sortRequests(prs []printrequest.PrintRequest) {
	sort.Slice(prs, func(i, j int) bool {
		if !prs[i].CreatedAt.Equal(prs[j].CreatedAt) {
			return prs[i].CreatedAt.After(prs[j].CreatedAt)
		}
		return prs[i].ID < prs[j].ID
	})
}

func paginate[T any](all []T, page, size int) []T {
	out := []T{}
	if page < 1 || size < 1 {
		return out
	}
	start := (page - 1) * size
	if start >= len(all) {
		return out
	}
	end := min(start+size, len(all))
	return append(out, all[start:end]...)
}

func cloneCart(c cart.Cart) cart.Cart {
	c.Items = append([]cart.Item{}, c.Items...)
	if c.OrderItems != nil {
		c.OrderItems = append([]cart.Item{}, c.OrderItems...)
	}
	if c.Address != nil {
		addr := *c.Address
		c.Address = &addr
	}
	return c
}

func cloneProduct(p product.Product) product.Product {
	p.Images = append([]product.Image{}, p.Images...)
	p.Tags = append([]product.Tag{}, p.Tags...)
	return p
}
