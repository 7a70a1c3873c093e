package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/order"
	"github.com/irsalhamdi/selfcrafted/core/printrequest"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/core/user"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

// nullJSON stores v as jsonb, or SQL NULL when v is nil.
func nullJSON[T any](v *T) any {
	if v == nil {
		return nil
	}
	return database.JSON[T]{V: *v}
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", database.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func affected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// =============================================================================
// Products

type productRow struct {
	ID          string                         `db:"id"`
	Name        string                         `db:"name"`
	Description string                         `db:"description"`
	Price       database.JSON[product.Price]   `db:"price"`
	Stock       database.JSON[product.Stock]   `db:"stock"`
	Images      database.JSON[[]product.Image] `db:"images"`
	Tags        database.JSON[[]product.Tag]   `db:"tags"`
	CreatedAt   time.Time                      `db:"created_at"`
	UpdatedAt   time.Time                      `db:"updated_at"`
}

func (r productRow) toProduct() product.Product {
	p := product.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price.V,
		Stock:       r.Stock.V,
		Images:      r.Images.V,
		Tags:        r.Tags.V,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if p.Images == nil {
		p.Images = []product.Image{}
	}
	if p.Tags == nil {
		p.Tags = []product.Tag{}
	}
	return p
}

const productColumns = `id, name, description, price, stock, images, tags, created_at, updated_at`

func (s *Postgres) FetchProduct(ctx context.Context, id string) (product.Product, error) {
	if !validID(id) {
		return product.Product{}, database.ErrNotFound
	}

	const q = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var r productRow
	if err := s.db.GetContext(ctx, &r, q, id); err != nil {
		return product.Product{}, mapErr(err)
	}
	return r.toProduct(), nil
}

func (s *Postgres) ListProducts(ctx context.Context, page, size int) ([]product.Product, error) {
	const q = `
	SELECT ` + productColumns + `
	FROM products
	ORDER BY created_at DESC, id
	LIMIT $1 OFFSET $2`

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, q, size, (page-1)*size); err != nil {
		return nil, err
	}

	out := make([]product.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toProduct())
	}
	return out, nil
}

func (s *Postgres) CreateProduct(ctx context.Context, p product.Product) error {
	const q = `
	INSERT INTO products (` + productColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, q,
		p.ID, p.Name, p.Description,
		database.JSON[product.Price]{V: p.Price},
		database.JSON[product.Stock]{V: p.Stock},
		database.JSON[[]product.Image]{V: p.Images},
		database.JSON[[]product.Tag]{V: p.Tags},
		p.CreatedAt, p.UpdatedAt,
	)
	return mapErr(err)
}

func (s *Postgres) SetStock(ctx context.Context, id string, stock product.Stock) error {
	const q = `UPDATE products SET stock = $2, updated_at = now() WHERE id = $1`

	n, err := affected(s.db.ExecContext(ctx, q, id, database.JSON[product.Stock]{V: stock}))
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *Postgres) DecreaseStock(ctx context.Context, id string, qty int) (int, error) {
	const q = `
	UPDATE products
	SET stock = jsonb_build_object(
			'count', (stock->>'count')::INT - $2::INT,
			'status', CASE WHEN (stock->>'count')::INT - $2::INT > 0 THEN 'in_stock' ELSE 'out_of_stock' END),
		updated_at = now()
	WHERE id = $1 AND (stock->>'count')::INT >= $2::INT`

	if !validID(id) {
		return 0, nil
	}
	return affected(s.db.ExecContext(ctx, q, id, qty))
}

// =============================================================================
// Carts

type cartRow struct {
	ID               string                          `db:"id"`
	ClientID         string                          `db:"client_id"`
	UID              sql.NullString                  `db:"uid"`
	List             database.JSON[[]cart.Item]      `db:"list"`
	Status           string                          `db:"status"`
	Price            sql.NullInt64                   `db:"price"`
	PaymentIDA       sql.NullString                  `db:"payment_id_a"`
	PaymentIDB       sql.NullString                  `db:"payment_id_b"`
	PaymentSignature sql.NullString                  `db:"payment_signature"`
	Address          database.JSON[*address.Address] `db:"address"`
	OrderItems       database.JSON[[]cart.Item]      `db:"order_items"`
	CreatedAt        time.Time                       `db:"created_at"`
	UpdatedAt        time.Time                       `db:"updated_at"`
}

func (r cartRow) toCart() cart.Cart {
	c := cart.Cart{
		ID:               r.ID,
		ClientID:         r.ClientID,
		UID:              r.UID.String,
		Items:            r.List.V,
		Status:           r.Status,
		Price:            int(r.Price.Int64),
		PaymentIDA:       r.PaymentIDA.String,
		PaymentIDB:       r.PaymentIDB.String,
		PaymentSignature: r.PaymentSignature.String,
		Address:          r.Address.V,
		OrderItems:       r.OrderItems.V,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return c
}

const cartColumns = `id, client_id, uid, list, status, price, payment_id_a, payment_id_b,
	payment_signature, address, order_items, created_at, updated_at`

func (s *Postgres) getCart(ctx context.Context, q string, args ...any) (cart.Cart, error) {
	var r cartRow
	if err := s.db.GetContext(ctx, &r, q, args...); err != nil {
		return cart.Cart{}, mapErr(err)
	}
	return r.toCart(), nil
}

func (s *Postgres) GetCartByUID(ctx context.Context, clientID, uid string) (cart.Cart, error) {
	const q = `SELECT ` + cartColumns + ` FROM get_cart_by_uid($1::TEXT, $2::UUID)`

	return s.getCart(ctx, q, clientID, nullString(uid))
}

func (s *Postgres) CreateCart(ctx context.Context, c cart.Cart) error {
	const q = `
	INSERT INTO cart (id, client_id, uid, list, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT DO NOTHING`

	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.ClientID, nullString(c.UID),
		database.JSON[[]cart.Item]{V: c.Items},
		c.Status, c.CreatedAt, c.UpdatedAt,
	)
	return mapErr(err)
}

func (s *Postgres) UpdateCartByID(ctx context.Context, clientID, cartID string, items []cart.Item, status, uid string) (int, error) {
	const q = `SELECT update_cart_by_id($1::TEXT, $2::UUID, $3::JSONB, $4::TEXT, $5::UUID)`

	if !validID(cartID) {
		return 0, nil
	}

	var n int
	err := s.db.GetContext(ctx, &n, q, clientID, cartID, database.JSON[[]cart.Item]{V: items}, status, nullString(uid))
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (s *Postgres) AttachCartUser(ctx context.Context, clientID, uid string) error {
	const q = `
	UPDATE cart SET uid = $2, updated_at = now()
	WHERE client_id = $1 AND uid IS NULL AND status = 'active'
	  AND NOT EXISTS (SELECT 1 FROM cart WHERE uid = $2 AND status = 'active')`

	_, err := s.db.ExecContext(ctx, q, clientID, uid)
	return mapErr(err)
}

// =============================================================================
// Checkout

func (s *Postgres) FetchCart(ctx context.Context, id string) (cart.Cart, error) {
	if !validID(id) {
		return cart.Cart{}, database.ErrNotFound
	}

	const q = `SELECT ` + cartColumns + ` FROM cart WHERE id = $1`

	return s.getCart(ctx, q, id)
}

func (s *Postgres) FetchCartByOrder(ctx context.Context, orderID string) (cart.Cart, error) {
	const q = `SELECT ` + cartColumns + ` FROM cart WHERE payment_id_a = $1`

	return s.getCart(ctx, q, orderID)
}

func (s *Postgres) SetCartOrder(ctx context.Context, cartID, prevOrderID string, up order.OrderUp) (int, error) {
	if !validID(cartID) {
		return 0, nil
	}

	const q = `
	UPDATE cart
	SET payment_id_a = $3, price = $4, address = $5, order_items = $6, updated_at = now()
	WHERE id = $1 AND status = 'active' AND payment_id_a IS NOT DISTINCT FROM NULLIF($2::TEXT, '')`

	return affected(s.db.ExecContext(ctx, q,
		cartID, prevOrderID, up.OrderID, up.Price,
		database.JSON[address.Address]{V: up.Address},
		database.JSON[[]cart.Item]{V: up.Items},
	))
}

func (s *Postgres) SetCartAddress(ctx context.Context, cartID, orderID string, addr address.Address) (int, error) {
	if !validID(cartID) {
		return 0, nil
	}

	const q = `
	UPDATE cart SET address = $3, updated_at = now()
	WHERE id = $1 AND payment_id_a = $2 AND status = 'active'`

	return affected(s.db.ExecContext(ctx, q, cartID, orderID, database.JSON[address.Address]{V: addr}))
}

func (s *Postgres) MarkCartPaid(ctx context.Context, cf payment.Confirmation) (int, error) {
	const q = `
	UPDATE cart
	SET status = 'paid', payment_id_b = $2, payment_signature = $3, updated_at = now()
	WHERE payment_id_a = $1 AND status = 'active'`

	return affected(s.db.ExecContext(ctx, q, cf.OrderID, cf.PaymentID, cf.Signature))
}

func (s *Postgres) MarkCartFailed(ctx context.Context, cartID, orderID string) (int, error) {
	if !validID(cartID) {
		return 0, nil
	}

	const q = `
	UPDATE cart SET status = 'failed', updated_at = now()
	WHERE id = $1 AND payment_id_a = $2 AND status = 'active'`

	return affected(s.db.ExecContext(ctx, q, cartID, orderID))
}

// =============================================================================
// Purchases

type purchaseRow struct {
	ID               int64                           `db:"id"`
	PaymentStatus    string                          `db:"payment_status"`
	PaymentMethod    string                          `db:"payment_method"`
	PaymentID        string                          `db:"payment_id"`
	PaymentIDB       sql.NullString                  `db:"payment_id_b"`
	PaymentSignature sql.NullString                  `db:"payment_signature"`
	Amount           int                             `db:"amount"`
	BillingAddress   database.JSON[*address.Address] `db:"billing_address"`
	ShippingAddress  database.JSON[*address.Address] `db:"shipping_address"`
	CartID           string                          `db:"cart_id"`
	ClientID         string                          `db:"client_id"`
	UID              sql.NullString                  `db:"uid"`
	ItemSnapshot     database.JSON[[]purchase.Item]  `db:"item_snapshot"`
	CreatedAt        time.Time                       `db:"created_at"`
}

func (s *Postgres) InsertPurchase(ctx context.Context, p purchase.Purchase) (int64, error) {
	const q = `
	INSERT INTO purchases (payment_status, payment_method, payment_id, payment_id_b, payment_signature,
		amount, billing_address, shipping_address, cart_id, client_id, uid, item_snapshot)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id`

	items := p.Items
	if items == nil {
		items = []purchase.Item{}
	}

	var id int64
	err := s.db.GetContext(ctx, &id, q,
		p.PaymentStatus, p.PaymentMethod, p.PaymentID,
		nullString(p.PaymentIDB), nullString(p.PaymentSignature), p.Amount,
		nullJSON(p.BillingAddress), nullJSON(p.ShippingAddress),
		p.CartID, p.ClientID, nullString(p.UID),
		database.JSON[[]purchase.Item]{V: items},
	)
	if err != nil {
		return 0, mapErr(err)
	}
	return id, nil
}

func (s *Postgres) ListPurchasesByUser(ctx context.Context, uid string) ([]purchase.Purchase, error) {
	const q = `
	SELECT id, payment_status, payment_method, payment_id, payment_id_b, payment_signature, amount,
		billing_address, shipping_address, cart_id, client_id, uid, item_snapshot, created_at
	FROM purchases
	WHERE uid = $1
	ORDER BY created_at DESC, id DESC`

	if !validID(uid) {
		return []purchase.Purchase{}, nil
	}

	var rows []purchaseRow
	if err := s.db.SelectContext(ctx, &rows, q, uid); err != nil {
		return nil, err
	}

	out := make([]purchase.Purchase, 0, len(rows))
	for _, r := range rows {
		out = append(out, purchase.Purchase{
			ID:               r.ID,
			PaymentStatus:    r.PaymentStatus,
			PaymentMethod:    r.PaymentMethod,
			PaymentID:        r.PaymentID,
			PaymentIDB:       r.PaymentIDB.String,
			PaymentSignature: r.PaymentSignature.String,
			Amount:           r.Amount,
			BillingAddress:   r.BillingAddress.V,
			ShippingAddress:  r.ShippingAddress.V,
			CartID:           r.CartID,
			ClientID:         r.ClientID,
			UID:              r.UID.String,
			Items:            r.ItemSnapshot.V,
			CreatedAt:        r.CreatedAt,
		})
	}
	return out, nil
}

// =============================================================================
// Users

type userRow struct {
	ID              string    `db:"user_id"`
	Name            string    `db:"name"`
	Email           string    `db:"email"`
	Role            string    `db:"role"`
	PasswordHash    []byte    `db:"password_hash"`
	QuoteDailyLimit int       `db:"quote_daily_limit"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

const userColumns = `user_id, name, email, role, password_hash, quote_daily_limit, created_at, updated_at`

func (s *Postgres) CreateUser(ctx context.Context, u user.User) error {
	const q = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, q, u.ID, u.Name, u.Email, u.Role, u.PasswordHash, u.QuoteDailyLimit, u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) getUser(ctx context.Context, q string, arg any) (user.User, error) {
	var r userRow
	if err := s.db.GetContext(ctx, &r, q, arg); err != nil {
		return user.User{}, mapErr(err)
	}
	return user.User(r), nil
}

func (s *Postgres) FetchUser(ctx context.Context, id string) (user.User, error) {
	if !validID(id) {
		return user.User{}, database.ErrNotFound
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
}

func (s *Postgres) FetchUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

type addressRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Line1   string `db:"line1"`
	Line2   string `db:"line2"`
	City    string `db:"city"`
	Pincode string `db:"pincode"`
	State   string `db:"state"`
	Phone   string `db:"phone"`
	Email   string `db:"email"`
}

func (s *Postgres) ListAddresses(ctx context.Context, uid string) ([]address.Address, error) {
	const q = `
	SELECT id, name, line1, line2, city, pincode, state, phone, email
	FROM addresses WHERE uid = $1
	ORDER BY created_at, id`

	out := []address.Address{}
	if !validID(uid) {
		return out, nil
	}

	var rows []addressRow
	if err := s.db.SelectContext(ctx, &rows, q, uid); err != nil {
		return nil, mapErr(err)
	}
	for _, r := range rows {
		out = append(out, address.Address(r))
	}
	return out, nil
}

func (s *Postgres) AddAddress(ctx context.Context, uid string, a address.Address, limit int) (int, error) {
	const q = `
	INSERT INTO addresses (id, uid, name, line1, line2, city, pincode, state, phone, email)
	SELECT $1::UUID, u.user_id, $3::TEXT, $4::TEXT, $5::TEXT, $6::TEXT, $7::TEXT, $8::TEXT, $9::TEXT, $10::TEXT
	FROM users u
	WHERE u.user_id = $2
		AND (SELECT count(*) FROM addresses WHERE uid = $2) < $11`

	if !validID(uid) {
		return 0, nil
	}
	return affected(s.db.ExecContext(ctx, q, a.ID, uid, a.Name, a.Line1, a.Line2, a.City, a.Pincode, a.State, a.Phone, a.Email, limit))
}

// =============================================================================
// Print requests

type requestRow struct {
	ID            string                                `db:"id"`
	UserID        string                                `db:"user_id"`
	CreatorID     string                                `db:"creator_id"`
	Model         string                                `db:"model"`
	ModelData     database.JSON[printrequest.ModelData] `db:"model_data"`
	ModelMetadata database.JSON[printrequest.Metadata]  `db:"model_metadata"`
	Stage         string                                `db:"request_stage"`
	Quote         sql.NullInt64                         `db:"quote"`
	OrderID       sql.NullString                        `db:"order_id"`
	PaymentID     sql.NullString                        `db:"payment_id"`
	Address       database.JSON[*address.Address]       `db:"address"`
	CreatedAt     time.Time                             `db:"created_at"`
	UpdatedAt     time.Time                             `db:"updated_at"`
}

func (r requestRow) toRequest() printrequest.PrintRequest {
	return printrequest.PrintRequest{
		ID:        r.ID,
		UserID:    r.UserID,
		CreatorID: r.CreatorID,
		Model:     r.Model,
		ModelData: r.ModelData.V,
		Metadata:  r.ModelMetadata.V,
		Stage:     printrequest.Stage(r.Stage),
		Quote:     int(r.Quote.Int64),
		OrderID:   r.OrderID.String,
		PaymentID: r.PaymentID.String,
		Address:   r.Address.V,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type eventRow struct {
	RequestID string                            `db:"request_id"`
	Type      string                            `db:"type"`
	By        string                            `db:"by_role"`
	Reason    string                            `db:"reason"`
	Extra     database.JSON[printrequest.Extra] `db:"extra"`
	CreatedAt time.Time                         `db:"created_at"`
}

func (r eventRow) toEvent() printrequest.Event {
	return printrequest.Event{
		Type:      printrequest.Stage(r.Type),
		By:        printrequest.Role(r.By),
		Reason:    r.Reason,
		Extra:     r.Extra.V,
		Timestamp: r.CreatedAt,
	}
}

const requestColumns = `id, user_id, creator_id, model, model_data, model_metadata, request_stage,
	quote, order_id, payment_id, address, created_at, updated_at`

func insertEvent(ctx context.Context, tx sqlx.ExtContext, id string, ev printrequest.Event) error {
	const q = `
	INSERT INTO printrequest_events (request_id, type, by_role, reason, extra, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.ExecContext(ctx, q, id, string(ev.Type), string(ev.By), ev.Reason,
		database.JSON[printrequest.Extra]{V: ev.Extra}, ev.Timestamp)
	return err
}

func (s *Postgres) InsertPrintRequest(ctx context.Context, pr printrequest.PrintRequest, ev printrequest.Event) error {
	const q = `
	INSERT INTO printrequests (id, user_id, creator_id, model, model_data, model_metadata, request_stage, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	return database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		_, err := tx.ExecContext(ctx, q,
			pr.ID, pr.UserID, pr.CreatorID, pr.Model,
			database.JSON[printrequest.ModelData]{V: pr.ModelData},
			database.JSON[printrequest.Metadata]{V: pr.Metadata},
			string(pr.Stage), pr.CreatedAt, pr.UpdatedAt,
		)
		if err != nil {
			return mapErr(err)
		}
		return insertEvent(ctx, tx, pr.ID, ev)
	})
}

func (s *Postgres) events(ctx context.Context, ids []string) (map[string][]printrequest.Event, error) {
	const q = `
	SELECT request_id, type, by_role, reason, extra, created_at
	FROM printrequest_events
	WHERE request_id = ANY($1::UUID[])
	ORDER BY id`

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, q, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("selecting events: %w", err)
	}

	out := make(map[string][]printrequest.Event, len(ids))
	for _, r := range rows {
		out[r.RequestID] = append(out[r.RequestID], r.toEvent())
	}
	return out, nil
}

func (s *Postgres) FetchPrintRequest(ctx context.Context, id string) (printrequest.PrintRequest, error) {
	if !validID(id) {
		return printrequest.PrintRequest{}, database.ErrNotFound
	}

	const q = `SELECT ` + requestColumns + ` FROM printrequests WHERE id = $1`

	var r requestRow
	if err := s.db.GetContext(ctx, &r, q, id); err != nil {
		return printrequest.PrintRequest{}, mapErr(err)
	}

	evs, err := s.events(ctx, []string{id})
	if err != nil {
		return printrequest.PrintRequest{}, err
	}

	pr := r.toRequest()
	pr.Events = evs[id]
	return pr, nil
}

func (s *Postgres) CountPrintRequestsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT count(*) FROM printrequests WHERE user_id = $1 AND created_at >= $2`

	var n int
	if err := s.db.GetContext(ctx, &n, q, userID, since); err != nil {
		return 0, err
	}
	return n, nil
}

// Transition updates the stage conditionally and appends the event in the
// same transaction. Nothing is appended when the stage did not move.
func (s *Postgres) Transition(ctx context.Context, id string, t printrequest.Transition) (int, error) {
	if !validID(id) {
		return 0, nil
	}

	const q = `
	UPDATE printrequests SET
		request_stage = $2,
		quote = COALESCE($4::INT, quote),
		order_id = CASE WHEN $5::BOOLEAN THEN NULL ELSE COALESCE($6::TEXT, order_id) END,
		payment_id = COALESCE($7::TEXT, payment_id),
		address = COALESCE($8::JSONB, address),
		updated_at = $9
	WHERE id = $1 AND request_stage = $3 AND ($10::TEXT = '' OR order_id = $10::TEXT)`

	var n int
	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		res, err := tx.ExecContext(ctx, q,
			id, string(t.To), string(t.From),
			nullInt(t.Quote), t.ClearOrder, nullString(t.OrderID), nullString(t.PaymentID),
			nullJSON(t.Address), t.Event.Timestamp, t.MatchOrderID,
		)
		if n, err = affected(res, err); err != nil || n == 0 {
			return err
		}
		return insertEvent(ctx, tx, id, t.Event)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Postgres) SetRequestAddress(ctx context.Context, id, orderID string, addr address.Address) (int, error) {
	if !validID(id) {
		return 0, nil
	}

	const q = `
	UPDATE printrequests SET address = $3, updated_at = now()
	WHERE id = $1 AND request_stage = 'order_created' AND order_id = $2`

	return affected(s.db.ExecContext(ctx, q, id, orderID, database.JSON[address.Address]{V: addr}))
}

func (s *Postgres) listRequests(ctx context.Context, q string, args ...any) ([]printrequest.PrintRequest, error) {
	var rows []requestRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}

	out := make([]printrequest.PrintRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRequest())
	}
	return out, nil
}

func (s *Postgres) ListPrintRequests(ctx context.Context, f printrequest.Filter) ([]printrequest.PrintRequest, error) {
	const q = `
	SELECT ` + requestColumns + `
	FROM printrequests
	WHERE ($1::TEXT = '' OR user_id::TEXT = $1::TEXT)
	  AND ($2::TEXT = '' OR creator_id::TEXT = $2::TEXT)
	ORDER BY created_at DESC, id
	LIMIT $3 OFFSET $4`

	return s.listRequests(ctx, q, f.UserID, f.CreatorID, f.Size, (f.Page-1)*f.Size)
}

func (s *Postgres) MakerHistory(ctx context.Context, creatorID string) ([]printrequest.PrintRequest, error) {
	const q = `
	SELECT ` + requestColumns + `
	FROM printrequests
	WHERE creator_id::TEXT = $1
	ORDER BY created_at DESC, id`

	prs, err := s.listRequests(ctx, q, creatorID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(prs))
	for _, pr := range prs {
		ids = append(ids, pr.ID)
	}
	evs, err := s.events(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range prs {
		prs[i].Events = evs[prs[i].ID]
	}
	return prs, nil
}
