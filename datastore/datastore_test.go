package datastore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/irsalhamdi/selfcrafted/config"
	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/order"
	"github.com/irsalhamdi/selfcrafted/core/printrequest"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/core/user"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/datastore"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/irsalhamdi/selfcrafted/payment/paymenttest"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestMemory(t *testing.T) {
	runSuite(t, func() datastore.Store { return datastore.NewMemory() })
}

func TestPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=selfcrafted",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("starting postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("purging postgres: %v", err)
		}
	})
	_ = resource.Expire(300)

	cfg := config.DB{
		User:         "postgres",
		Password:     "postgres",
		Host:         resource.GetHostPort("5432/tcp"),
		Name:         "selfcrafted",
		MaxIdleConns: 2,
		MaxOpenConns: 4,
		DisableTLS:   true,
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	pool.MaxWait = time.Minute
	if err := pool.Retry(func() error {
		return database.StatusCheck(context.Background(), db)
	}); err != nil {
		t.Fatalf("waiting for postgres: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	// Every subtest works on fresh ids, so the schema is shared.
	st := datastore.NewPostgres(db)
	runSuite(t, func() datastore.Store { return st })
}

func runSuite(t *testing.T, newStore func() datastore.Store) {
	t.Run("products", func(t *testing.T) { testProducts(t, newStore()) })
	t.Run("carts", func(t *testing.T) { testCarts(t, newStore()) })
	t.Run("checkout", func(t *testing.T) { testCheckout(t, newStore()) })
	t.Run("purchases", func(t *testing.T) { testPurchases(t, newStore()) })
	t.Run("users", func(t *testing.T) { testUsers(t, newStore()) })
	t.Run("printrequests", func(t *testing.T) { testPrintRequests(t, newStore()) })
	t.Run("concurrency", func(t *testing.T) { testConcurrency(t, newStore()) })
}

// now is truncated so values survive a round trip through timestamptz.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func seedUser(t *testing.T, st datastore.Store, role string) user.User {
	t.Helper()

	u := user.User{
		ID:              uuid.NewString(),
		Name:            "Asha",
		Email:           uuid.NewString() + "@example.com",
		Role:            role,
		PasswordHash:    []byte("hash"),
		QuoteDailyLimit: 3,
		CreatedAt:       now(),
		UpdatedAt:       now(),
	}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return u
}

func seedProduct(t *testing.T, st datastore.Store, price, stock int) product.Product {
	t.Helper()

	p := product.Product{
		ID:          uuid.NewString(),
		Name:        "Planter",
		Description: "A small planter",
		Price:       product.Price{Old: price + 100, New: price},
		Stock:       product.Stock{Count: stock, Status: product.StockStatus(stock)},
		Images:      []product.Image{{URL: "https://example.com/p.png"}},
		Tags:        []product.Tag{{Tag: "home"}},
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}
	if err := st.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("creating product: %v", err)
	}
	return p
}

func seedCart(t *testing.T, st datastore.Store, clientID, uid string) cart.Cart {
	t.Helper()
	ctx := context.Background()

	c := cart.Cart{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		UID:       uid,
		Items:     []cart.Item{},
		Status:    cart.StatusActive,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	if err := st.CreateCart(ctx, c); err != nil {
		t.Fatalf("creating cart: %v", err)
	}

	got, err := st.GetCartByUID(ctx, clientID, uid)
	if err != nil {
		t.Fatalf("fetching cart: %v", err)
	}
	return got
}

func testProducts(t *testing.T, st datastore.Store) {
	ctx := context.Background()
	p := seedProduct(t, st, 500, 10)

	got, err := st.FetchProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("fetching product: %v", err)
	}
	if diff := cmp.Diff(p.Price, got.Price); diff != "" {
		t.Errorf("price mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(p.Tags, got.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	if _, err := st.FetchProduct(ctx, "nope"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("fetching malformed id: got %v, want ErrNotFound", err)
	}
	if _, err := st.FetchProduct(ctx, uuid.NewString()); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("fetching unknown id: got %v, want ErrNotFound", err)
	}

	n, err := st.DecreaseStock(ctx, p.ID, 8)
	if err != nil || n != 1 {
		t.Fatalf("decreasing stock: n=%d err=%v", n, err)
	}
	n, err = st.DecreaseStock(ctx, p.ID, 3)
	if err != nil || n != 0 {
		t.Fatalf("decreasing past zero: n=%d err=%v, want no rows", n, err)
	}
	n, err = st.DecreaseStock(ctx, p.ID, 2)
	if err != nil || n != 1 {
		t.Fatalf("decreasing to zero: n=%d err=%v", n, err)
	}

	got, err = st.FetchProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("fetching product: %v", err)
	}
	want := product.Stock{Count: 0, Status: product.StockOutOfStock}
	if diff := cmp.Diff(want, got.Stock); diff != "" {
		t.Errorf("stock mismatch (-want +got):\n%s", diff)
	}

	if err := st.SetStock(ctx, p.ID, product.Stock{Count: 4, Status: product.StockInStock}); err != nil {
		t.Fatalf("setting stock: %v", err)
	}
	if err := st.SetStock(ctx, uuid.NewString(), product.Stock{}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("setting stock of unknown product: got %v, want ErrNotFound", err)
	}

	list, err := st.ListProducts(ctx, 1, 50)
	if err != nil {
		t.Fatalf("listing products: %v", err)
	}
	if len(list) == 0 {
		t.Errorf("listing products: got none")
	}
}

func testCarts(t *testing.T, st datastore.Store) {
	ctx := context.Background()
	u := seedUser(t, st, "USER")
	clientID := uuid.NewString()

	if _, err := st.GetCartByUID(ctx, clientID, ""); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("fetching missing cart: got %v, want ErrNotFound", err)
	}

	c := seedCart(t, st, clientID, "")

	// A second create for the same client keeps the first cart.
	again := seedCart(t, st, clientID, "")
	if again.ID != c.ID {
		t.Fatalf("second create replaced the cart: got %s, want %s", again.ID, c.ID)
	}

	items := []cart.Item{{ProductID: uuid.NewString(), Qty: 2, Price: 500}}

	n, err := st.UpdateCartByID(ctx, "someone-else", c.ID, items, cart.StatusActive, "")
	if err != nil || n != 0 {
		t.Fatalf("updating foreign cart: n=%d err=%v, want no rows", n, err)
	}
	n, err = st.UpdateCartByID(ctx, clientID, c.ID, items, cart.StatusActive, "")
	if err != nil || n != 1 {
		t.Fatalf("updating cart: n=%d err=%v", n, err)
	}

	if err := st.AttachCartUser(ctx, clientID, u.ID); err != nil {
		t.Fatalf("attaching user: %v", err)
	}

	// The user now sees the cart from any device.
	got, err := st.GetCartByUID(ctx, uuid.NewString(), u.ID)
	if err != nil {
		t.Fatalf("fetching user cart: %v", err)
	}
	if got.ID != c.ID || got.UID != u.ID {
		t.Fatalf("user cart: got id=%s uid=%s, want id=%s uid=%s", got.ID, got.UID, c.ID, u.ID)
	}
	if diff := cmp.Diff(items, got.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	// Another device updates through the user id.
	n, err = st.UpdateCartByID(ctx, "other-device", c.ID, []cart.Item{}, cart.StatusActive, u.ID)
	if err != nil || n != 1 {
		t.Fatalf("updating as user: n=%d err=%v", n, err)
	}

	// Once claimed, the browser that created the cart no longer owns it on
	// its own: neither signed out nor signed in as somebody else.
	n, err = st.UpdateCartByID(ctx, clientID, c.ID, items, cart.StatusActive, "")
	if err != nil || n != 0 {
		t.Fatalf("updating claimed cart as guest: n=%d err=%v, want no rows", n, err)
	}
	n, err = st.UpdateCartByID(ctx, clientID, c.ID, items, cart.StatusActive, uuid.NewString())
	if err != nil || n != 0 {
		t.Fatalf("updating claimed cart as another user: n=%d err=%v, want no rows", n, err)
	}
}

func testCheckout(t *testing.T, st datastore.Store) {
	ctx := context.Background()
	clientID := uuid.NewString()
	c := seedCart(t, st, clientID, "")

	addr := address.Address{Name: "Asha", Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001", Phone: "9876543210"}
	up := order.OrderUp{
		OrderID: "order_" + uuid.NewString(),
		Price:   1049,
		Address: addr,
		Items:   []cart.Item{{ProductID: uuid.NewString(), Qty: 2, Price: 500}},
	}

	n, err := st.SetCartOrder(ctx, c.ID, "", up)
	if err != nil || n != 1 {
		t.Fatalf("setting order: n=%d err=%v", n, err)
	}

	// The previous order id no longer matches.
	stale := up
	stale.OrderID = "order_" + uuid.NewString()
	n, err = st.SetCartOrder(ctx, c.ID, "", stale)
	if err != nil || n != 0 {
		t.Fatalf("setting order with stale previous id: n=%d err=%v, want no rows", n, err)
	}

	got, err := st.FetchCartByOrder(ctx, up.OrderID)
	if err != nil {
		t.Fatalf("fetching by order: %v", err)
	}
	if got.ID != c.ID || got.Price != 1049 {
		t.Fatalf("cart by order: got id=%s price=%d", got.ID, got.Price)
	}
	if diff := cmp.Diff(up.Items, got.OrderItems); diff != "" {
		t.Errorf("order items mismatch (-want +got):\n%s", diff)
	}

	addr.Line2 = "Flat 4"
	n, err = st.SetCartAddress(ctx, c.ID, up.OrderID, addr)
	if err != nil || n != 1 {
		t.Fatalf("setting address: n=%d err=%v", n, err)
	}

	cf := payment.Confirmation{OrderID: up.OrderID, PaymentID: "pay_1", Signature: "sig"}
	n, err = st.MarkCartPaid(ctx, cf)
	if err != nil || n != 1 {
		t.Fatalf("marking paid: n=%d err=%v", n, err)
	}
	n, err = st.MarkCartPaid(ctx, cf)
	if err != nil || n != 0 {
		t.Fatalf("marking paid twice: n=%d err=%v, want no rows", n, err)
	}
	n, err = st.MarkCartFailed(ctx, c.ID, up.OrderID)
	if err != nil || n != 0 {
		t.Fatalf("failing a paid cart: n=%d err=%v, want no rows", n, err)
	}

	got, err = st.FetchCart(ctx, c.ID)
	if err != nil {
		t.Fatalf("fetching cart: %v", err)
	}
	if got.Status != cart.StatusPaid || got.PaymentIDB != "pay_1" {
		t.Errorf("paid cart: got status=%s payment=%s", got.Status, got.PaymentIDB)
	}
	if diff := cmp.Diff(&addr, got.Address); diff != "" {
		t.Errorf("address mismatch (-want +got):\n%s", diff)
	}

	// A paid cart is no longer the active one.
	if _, err := st.GetCartByUID(ctx, clientID, ""); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("active cart after payment: got %v, want ErrNotFound", err)
	}
}

func testPurchases(t *testing.T, st datastore.Store) {
	ctx := context.Background()
	u := seedUser(t, st, "USER")

	p := purchase.Purchase{
		PaymentStatus: purchase.StatusPaid,
		PaymentMethod: "razorpay",
		PaymentID:     "order_" + uuid.NewString(),
		PaymentIDB:    "pay_1",
		Amount:        1049,
		CartID:        uuid.NewString(),
		ClientID:      uuid.NewString(),
		UID:           u.ID,
		Items:         []purchase.Item{{ProductID: uuid.NewString(), Name: "Planter", Qty: 2, Price: 500}},
	}

	id, err := st.InsertPurchase(ctx, p)
	if err != nil || id == 0 {
		t.Fatalf("inserting purchase: id=%d err=%v", id, err)
	}
	if _, err := st.InsertPurchase(ctx, p); !errors.Is(err, database.ErrDuplicate) {
		t.Fatalf("inserting twice: got %v, want ErrDuplicate", err)
	}

	list, err := st.ListPurchasesByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("listing purchases: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("listing purchases: got %d, want 1", len(list))
	}
	if diff := cmp.Diff(p.Items, list[0].Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if list[0].Amount != 1049 || list[0].PaymentID != p.PaymentID {
		t.Errorf("purchase: got amount=%d payment=%s", list[0].Amount, list[0].PaymentID)
	}
}

func testUsers(t *testing.T, st datastore.Store) {
	ctx := context.Background()
	u := seedUser(t, st, "MAKER")

	dup := u
	dup.ID = uuid.NewString()
	if err := st.CreateUser(ctx, dup); !errors.Is(err, database.ErrDuplicate) {
		t.Fatalf("creating duplicate email: got %v, want ErrDuplicate", err)
	}

	got, err := st.FetchUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("fetching by email: %v", err)
	}
	if got.ID != u.ID || got.Role != "MAKER" || string(got.PasswordHash) != "hash" {
		t.Errorf("user: got %+v", got)
	}

	if _, err := st.FetchUser(ctx, "nope"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("fetching malformed id: got %v, want ErrNotFound", err)
	}

	home := address.Address{ID: uuid.NewString(), Name: "Asha", Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001", Phone: "9876543210"}
	work := home
	work.ID = uuid.NewString()
	work.Line1 = "4th Floor, 80 Feet Road"
	work.Email = "asha@example.com"

	for _, a := range []address.Address{home, work} {
		if n, err := st.AddAddress(ctx, u.ID, a, 2); err != nil || n != 1 {
			t.Fatalf("adding address: n=%d err=%v", n, err)
		}
	}
	extra := home
	extra.ID = uuid.NewString()
	if n, err := st.AddAddress(ctx, u.ID, extra, 2); err != nil || n != 0 {
		t.Fatalf("adding past the limit: n=%d err=%v, want no rows", n, err)
	}
	if n, err := st.AddAddress(ctx, uuid.NewString(), extra, 2); err != nil || n != 0 {
		t.Fatalf("adding for an unknown user: n=%d err=%v, want no rows", n, err)
	}

	book, err := st.ListAddresses(ctx, u.ID)
	if err != nil {
		t.Fatalf("listing addresses: %v", err)
	}
	if diff := cmp.Diff([]address.Address{home, work}, book); diff != "" {
		t.Errorf("addresses mismatch (-want +got):\n%s", diff)
	}

	book, err = st.ListAddresses(ctx, uuid.NewString())
	if err != nil || len(book) != 0 {
		t.Errorf("listing for a stranger: len=%d err=%v", len(book), err)
	}
}

func testPrintRequests(t *testing.T, st datastore.Store) {
	ctx := context.Background()
	buyer := seedUser(t, st, "USER")
	maker := seedUser(t, st, "MAKER")

	created := now()
	pr := printrequest.PrintRequest{
		ID:        uuid.NewString(),
		UserID:    buyer.ID,
		CreatorID: maker.ID,
		Model:     fmt.Sprintf("%s/model.stl", buyer.ID),
		ModelData: printrequest.ModelData{Material: "PLA", Infill: 20, Scale: 1, Quantity: 1},
		Metadata:  printrequest.Metadata{FileName: "model.stl", Size: 1024},
		Stage:     printrequest.Requested,
		CreatedAt: created,
		UpdatedAt: created,
	}
	first := printrequest.Event{Type: printrequest.Requested, By: printrequest.ByUser, Timestamp: created}
	if err := st.InsertPrintRequest(ctx, pr, first); err != nil {
		t.Fatalf("inserting print request: %v", err)
	}

	n, err := st.CountPrintRequestsSince(ctx, buyer.ID, created.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("counting requests: n=%d err=%v", n, err)
	}

	quote := printrequest.Transition{
		From:  printrequest.Requested,
		To:    printrequest.Quoted,
		Quote: 1200,
		Event: printrequest.Event{Type: printrequest.Quoted, By: printrequest.ByMaker, Extra: printrequest.Extra{Quote: 1200}, Timestamp: now()},
	}

	wrong := quote
	wrong.From = printrequest.Paid
	n, err = st.Transition(ctx, pr.ID, wrong)
	if err != nil || n != 0 {
		t.Fatalf("transition from wrong stage: n=%d err=%v, want no rows", n, err)
	}

	n, err = st.Transition(ctx, pr.ID, quote)
	if err != nil || n != 1 {
		t.Fatalf("quoting: n=%d err=%v", n, err)
	}

	orderID := "order_" + uuid.NewString()
	addr := address.Address{Name: "Asha", Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001", Phone: "9876543210"}
	n, err = st.Transition(ctx, pr.ID, printrequest.Transition{
		From:    printrequest.Quoted,
		To:      printrequest.OrderCreated,
		OrderID: orderID,
		Address: &addr,
		Event:   printrequest.Event{Type: printrequest.OrderCreated, By: printrequest.ByUser, Extra: printrequest.Extra{OrderID: orderID}, Timestamp: now()},
	})
	if err != nil || n != 1 {
		t.Fatalf("creating order: n=%d err=%v", n, err)
	}

	n, err = st.SetRequestAddress(ctx, pr.ID, "order_other", addr)
	if err != nil || n != 0 {
		t.Fatalf("setting address for a different order: n=%d err=%v, want no rows", n, err)
	}
	addr.Line2 = "Flat 4"
	n, err = st.SetRequestAddress(ctx, pr.ID, orderID, addr)
	if err != nil || n != 1 {
		t.Fatalf("setting address: n=%d err=%v", n, err)
	}

	pay := printrequest.Transition{
		From:         printrequest.OrderCreated,
		To:           printrequest.Paid,
		MatchOrderID: "order_other",
		PaymentID:    "pay_1",
		Event:        printrequest.Event{Type: printrequest.Paid, By: printrequest.ByUser, Timestamp: now()},
	}
	n, err = st.Transition(ctx, pr.ID, pay)
	if err != nil || n != 0 {
		t.Fatalf("paying a different order: n=%d err=%v, want no rows", n, err)
	}
	pay.MatchOrderID = orderID
	n, err = st.Transition(ctx, pr.ID, pay)
	if err != nil || n != 1 {
		t.Fatalf("paying: n=%d err=%v", n, err)
	}

	got, err := st.FetchPrintRequest(ctx, pr.ID)
	if err != nil {
		t.Fatalf("fetching print request: %v", err)
	}
	if got.Stage != printrequest.Paid || got.Quote != 1200 || got.OrderID != orderID || got.PaymentID != "pay_1" {
		t.Errorf("print request: got stage=%s quote=%d order=%s payment=%s", got.Stage, got.Quote, got.OrderID, got.PaymentID)
	}
	if diff := cmp.Diff(&addr, got.Address); diff != "" {
		t.Errorf("address mismatch (-want +got):\n%s", diff)
	}

	var types []printrequest.Stage
	for _, ev := range got.Events {
		types = append(types, ev.Type)
	}
	wantTypes := []printrequest.Stage{printrequest.Requested, printrequest.Quoted, printrequest.OrderCreated, printrequest.Paid}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	list, err := st.ListPrintRequests(ctx, printrequest.Filter{CreatorID: maker.ID, Page: 1, Size: 10})
	if err != nil || len(list) != 1 {
		t.Fatalf("listing for maker: len=%d err=%v", len(list), err)
	}
	list, err = st.ListPrintRequests(ctx, printrequest.Filter{UserID: maker.ID, Page: 1, Size: 10})
	if err != nil || len(list) != 0 {
		t.Fatalf("listing maker as buyer: len=%d err=%v", len(list), err)
	}

	history, err := st.MakerHistory(ctx, maker.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("maker history: len=%d err=%v", len(history), err)
	}
	if len(history[0].Events) != 4 {
		t.Errorf("maker history events: got %d, want 4", len(history[0].Events))
	}

	n, err = st.SetRequestAddress(ctx, pr.ID, orderID, addr)
	if err != nil || n != 0 {
		t.Fatalf("setting address after payment: n=%d err=%v, want no rows", n, err)
	}
}

func testConcurrency(t *testing.T, st datastore.Store) {
	ctx := context.Background()
	const workers = 10

	t.Run("stock", func(t *testing.T) {
		p := seedProduct(t, st, 500, 5)

		var (
			wg      sync.WaitGroup
			decs    atomic.Int32
			failure atomic.Value
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := st.DecreaseStock(ctx, p.ID, 1)
				if err != nil {
					failure.Store(err)
					return
				}
				decs.Add(int32(n))
			}()
		}
		wg.Wait()

		if err, ok := failure.Load().(error); ok {
			t.Fatalf("decreasing stock: %v", err)
		}
		if decs.Load() != 5 {
			t.Fatalf("decreased %d times, want 5", decs.Load())
		}

		got, err := st.FetchProduct(ctx, p.ID)
		if err != nil {
			t.Fatalf("fetching product: %v", err)
		}
		if got.Stock.Count != 0 || got.Stock.Status != product.StockOutOfStock {
			t.Fatalf("stock after the run: %+v", got.Stock)
		}
	})

	t.Run("paid", func(t *testing.T) {
		c := seedCart(t, st, uuid.NewString(), "")
		up := order.OrderUp{OrderID: "order_" + uuid.NewString(), Price: 549, Items: []cart.Item{}}
		if n, err := st.SetCartOrder(ctx, c.ID, "", up); err != nil || n != 1 {
			t.Fatalf("setting order: n=%d err=%v", n, err)
		}

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < workers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				cf := payment.Confirmation{OrderID: up.OrderID, PaymentID: fmt.Sprintf("pay_%d", i), Signature: "sig"}
				if n, err := st.MarkCartPaid(ctx, cf); err == nil {
					wins.Add(int32(n))
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Fatalf("cart marked paid %d times, want 1", wins.Load())
		}
	})

	t.Run("confirm", func(t *testing.T) {
		log, _ := test.NewNullLogger()
		gw := &paymenttest.Gateway{}
		proc := order.NewProcessor(st, st, st, gw, log)

		buyer := seedUser(t, st, "USER")
		p := seedProduct(t, st, 500, 10)
		c := seedCart(t, st, uuid.NewString(), buyer.ID)
		up := order.OrderUp{
			OrderID: "order_" + uuid.NewString(),
			Price:   1049,
			Items:   []cart.Item{{ProductID: p.ID, Qty: 2, Price: 500}},
		}
		if n, err := st.SetCartOrder(ctx, c.ID, "", up); err != nil || n != 1 {
			t.Fatalf("setting order: n=%d err=%v", n, err)
		}

		cf := paymenttest.Confirm(up.OrderID, "pay_1")
		results := make([]order.Confirmed, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = proc.Confirm(ctx, cf)
			}()
		}
		wg.Wait()

		var fresh int
		for i, res := range results {
			if errs[i] != nil {
				t.Fatalf("confirm %d: %v", i, errs[i])
			}
			if !res.AlreadyConfirmed {
				fresh++
			}
		}
		if fresh != 1 {
			t.Fatalf("order confirmed %d times, want 1", fresh)
		}

		got, err := st.FetchProduct(ctx, p.ID)
		if err != nil {
			t.Fatalf("fetching product: %v", err)
		}
		if got.Stock.Count != 8 {
			t.Fatalf("stock after the run: got %d, want 8", got.Stock.Count)
		}

		ps, err := st.ListPurchasesByUser(ctx, buyer.ID)
		if err != nil || len(ps) != 1 {
			t.Fatalf("purchases: len=%d err=%v, want one", len(ps), err)
		}
	})
}
