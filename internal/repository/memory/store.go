// Package memory implements the repository port in process memory.
//
// Transactions are serialized by a single mutex and operate on a copy of the
// data that replaces the live copy only on commit. It backs the service tests
// and the --storage=memory development mode.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"group-order/internal/models"
	"group-order/internal/repository"
)

type state struct {
	restaurants map[uuid.UUID]models.Restaurant
	menuItems   map[uuid.UUID]models.MenuItem
	users       map[uuid.UUID]models.User
	orders      []models.Order
	items       []models.OrderItem
	payments    []models.Payment
}

func newState() *state {
	return &state{
		restaurants: make(map[uuid.UUID]models.Restaurant),
		menuItems:   make(map[uuid.UUID]models.MenuItem),
		users:       make(map[uuid.UUID]models.User),
	}
}

func (s *state) clone() *state {
	return &state{
		restaurants: maps.Clone(s.restaurants),
		menuItems:   maps.Clone(s.menuItems),
		users:       maps.Clone(s.users),
		orders:      slices.Clone(s.orders),
		items:       slices.Clone(s.items),
		payments:    slices.Clone(s.payments),
	}
}

// Store is an in-memory repository.Store
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		st:     newState(),
		faults: make(map[string]error),
	}
}

// InjectFault makes every later call of the named write method fail with err.
// A nil err clears the fault.
func (s *Store) InjectFault(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

// AppendPayment inserts a payment row without the (order, user) uniqueness
// check. It exists to exercise duplicate-row tolerance.
func (s *Store) AppendPayment(p models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.payments = append(s.st.payments, p)
}

// InTx runs fn against a private copy of the data and publishes it when fn returns nil
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := &view{st: s.st.clone(), faults: s.faults}
	if err := fn(work); err != nil {
		return err
	}
	s.st = work.st
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// read runs fn on the committed data
func (s *Store) read(fn func(v *view)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&view{st: s.st})
}

func (s *Store) GetRestaurant(ctx context.Context, id uuid.UUID) (r *models.Restaurant, err error) {
	s.read(func(v *view) { r, err = v.GetRestaurant(ctx, id) })
	return
}

func (s *Store) ListRestaurants(ctx context.Context) (out []models.Restaurant, err error) {
	s.read(func(v *view) { out, err = v.ListRestaurants(ctx) })
	return
}

func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (m *models.MenuItem, err error) {
	s.read(func(v *view) { m, err = v.GetMenuItem(ctx, id) })
	return
}

func (s *Store) GetMenuItems(ctx context.Context, ids []uuid.UUID) (out map[uuid.UUID]*models.MenuItem, err error) {
	s.read(func(v *view) { out, err = v.GetMenuItems(ctx, ids) })
	return
}

func (s *Store) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) (out []models.MenuItem, err error) {
	s.read(func(v *view) { out, err = v.ListMenuItems(ctx, restaurantID) })
	return
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (u *models.User, err error) {
	s.read(func(v *view) { u, err = v.GetUser(ctx, id) })
	return
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (u *models.User, err error) {
	s.read(func(v *view) { u, err = v.GetUserByPhone(ctx, phone) })
	return
}

func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) (out map[uuid.UUID]*models.User, err error) {
	s.read(func(v *view) { out, err = v.GetUsers(ctx, ids) })
	return
}

func (s *Store) ListUsers(ctx context.Context, role *models.Role) (out []models.User, err error) {
	s.read(func(v *view) { out, err = v.ListUsers(ctx, role) })
	return
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (o *models.Order, err error) {
	s.read(func(v *view) { o, err = v.GetOrder(ctx, id) })
	return
}

func (s *Store) ListOrders(ctx context.Context, filter repository.OrderFilter) (out []models.Order, err error) {
	s.read(func(v *view) { out, err = v.ListOrders(ctx, filter) })
	return
}

func (s *Store) GetOrderItem(ctx context.Context, id uuid.UUID) (it *models.OrderItem, err error) {
	s.read(func(v *view) { it, err = v.GetOrderItem(ctx, id) })
	return
}

func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) (out []models.OrderItem, err error) {
	s.read(func(v *view) { out, err = v.ListOrderItems(ctx, orderID) })
	return
}

func (s *Store) ListPayments(ctx context.Context, orderID uuid.UUID) (out []models.Payment, err error) {
	s.read(func(v *view) { out, err = v.ListPayments(ctx, orderID) })
	return
}

func (s *Store) FindPayments(ctx context.Context, orderID, userID uuid.UUID) (out []models.Payment, err error) {
	s.read(func(v *view) { out, err = v.FindPayments(ctx, orderID, userID) })
	return
}

// view implements repository.Tx over one state
type view struct {
	st     *state
	faults map[string]error
}

func (v *view) fault(method string) error {
	if err, ok := v.faults[method]; ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (v *view) GetRestaurant(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	r, ok := v.st.restaurants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (v *view) ListRestaurants(_ context.Context) ([]models.Restaurant, error) {
	out := slices.Collect(maps.Values(v.st.restaurants))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) CreateRestaurant(_ context.Context, r *models.Restaurant) error {
	if err := v.fault("CreateRestaurant"); err != nil {
		return err
	}
	if _, ok := v.st.restaurants[r.ID]; ok {
		return repository.ErrDuplicate
	}
	v.st.restaurants[r.ID] = *r
	return nil
}

func (v *view) UpdateRestaurant(_ context.Context, r *models.Restaurant) error {
	if err := v.fault("UpdateRestaurant"); err != nil {
		return err
	}
	if _, ok := v.st.restaurants[r.ID]; !ok {
		return repository.ErrNotFound
	}
	v.st.restaurants[r.ID] = *r
	return nil
}

func (v *view) GetMenuItem(_ context.Context, id uuid.UUID) (*models.MenuItem, error) {
	m, ok := v.st.menuItems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (v *view) GetMenuItems(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.MenuItem, error) {
	out := make(map[uuid.UUID]*models.MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := v.st.menuItems[id]; ok {
			out[id] = &m
		}
	}
	return out, nil
}

func (v *view) ListMenuItems(_ context.Context, restaurantID uuid.UUID) ([]models.MenuItem, error) {
	var out []models.MenuItem
	for _, m := range v.st.menuItems {
		if m.RestaurantID == restaurantID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) CreateMenuItem(_ context.Context, m *models.MenuItem) error {
	if err := v.fault("CreateMenuItem"); err != nil {
		return err
	}
	if _, ok := v.st.restaurants[m.RestaurantID]; !ok {
		return fmt.Errorf("menu item references unknown restaurant %s", m.RestaurantID)
	}
	v.st.menuItems[m.ID] = *m
	return nil
}

func (v *view) UpdateMenuItem(_ context.Context, m *models.MenuItem) error {
	if err := v.fault("UpdateMenuItem"); err != nil {
		return err
	}
	existing, ok := v.st.menuItems[m.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// the owning restaurant never changes
	updated := *m
	updated.RestaurantID = existing.RestaurantID
	v.st.menuItems[m.ID] = updated
	return nil
}

func (v *view) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := v.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (v *view) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	for _, u := range v.st.users {
		if u.Phone == phone {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (v *view) GetUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := v.st.users[id]; ok {
			out[id] = &u
		}
	}
	return out, nil
}

func (v *view) ListUsers(_ context.Context, role *models.Role) ([]models.User, error) {
	var out []models.User
	for _, u := range v.st.users {
		if role == nil || u.Role == *role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) CreateUser(_ context.Context, u *models.User) error {
	if err := v.fault("CreateUser"); err != nil {
		return err
	}
	for _, existing := range v.st.users {
		if existing.Phone == u.Phone {
			return fmt.Errorf("%w: users_phone_key", repository.ErrDuplicate)
		}
	}
	v.st.users[u.ID] = *u
	return nil
}

func (v *view) UpdateUser(_ context.Context, u *models.User) error {
	if err := v.fault("UpdateUser"); err != nil {
		return err
	}
	existing, ok := v.st.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// phone and password are not updatable
	updated := *u
	updated.Phone = existing.Phone
	updated.PasswordHash = existing.PasswordHash
	v.st.users[u.ID] = updated
	return nil
}

func (v *view) orderIndex(id uuid.UUID) int {
	return slices.IndexFunc(v.st.orders, func(o models.Order) bool { return o.ID == id })
}

func (v *view) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	i := v.orderIndex(id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	o := v.st.orders[i]
	return &o, nil
}

// LockOrder needs no extra locking: the store mutex already serializes transactions
func (v *view) LockOrder(ctx context.Context, id uuid.UUID, _ repository.LockMode) (*models.Order, error) {
	return v.GetOrder(ctx, id)
}

func (v *view) CreateOrder(_ context.Context, o *models.Order) error {
	if err := v.fault("CreateOrder"); err != nil {
		return err
	}
	v.st.orders = append(v.st.orders, *o)
	return nil
}

func (v *view) UpdateOrder(_ context.Context, o *models.Order) error {
	if err := v.fault("UpdateOrder"); err != nil {
		return err
	}
	i := v.orderIndex(o.ID)
	if i < 0 {
		return repository.ErrNotFound
	}
	v.st.orders[i] = *o
	return nil
}

func (v *view) ListOrders(_ context.Context, filter repository.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	// newest insert first so equal order dates keep that order after the stable sort
	for i := len(v.st.orders) - 1; i >= 0; i-- {
		o := v.st.orders[i]
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if filter.RestaurantID != nil && o.RestaurantID != *filter.RestaurantID {
			continue
		}
		if filter.ParticipantID != nil && !v.participates(o.ID, *filter.ParticipantID) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderDate.After(out[j].OrderDate) })
	return out, nil
}

func (v *view) participates(orderID, userID uuid.UUID) bool {
	for _, it := range v.st.items {
		if it.OrderID == orderID && it.UserID == userID {
			return true
		}
	}
	for _, p := range v.st.payments {
		if p.OrderID == orderID && p.UserID == userID {
			return true
		}
	}
	return false
}

func (v *view) itemIndex(id uuid.UUID) int {
	return slices.IndexFunc(v.st.items, func(it models.OrderItem) bool { return it.ID == id })
}

func (v *view) GetOrderItem(_ context.Context, id uuid.UUID) (*models.OrderItem, error) {
	i := v.itemIndex(id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	it := v.st.items[i]
	return &it, nil
}

func (v *view) CreateOrderItem(_ context.Context, it *models.OrderItem) error {
	if err := v.fault("CreateOrderItem"); err != nil {
		return err
	}
	if v.orderIndex(it.OrderID) < 0 {
		return fmt.Errorf("order item references unknown order %s", it.OrderID)
	}
	v.st.items = append(v.st.items, *it)
	return nil
}

func (v *view) UpdateOrderItem(_ context.Context, it *models.OrderItem) error {
	if err := v.fault("UpdateOrderItem"); err != nil {
		return err
	}
	i := v.itemIndex(it.ID)
	if i < 0 {
		return repository.ErrNotFound
	}
	v.st.items[i] = *it
	return nil
}

func (v *view) DeleteOrderItem(_ context.Context, id uuid.UUID) error {
	if err := v.fault("DeleteOrderItem"); err != nil {
		return err
	}
	i := v.itemIndex(id)
	if i < 0 {
		return repository.ErrNotFound
	}
	v.st.items = slices.Delete(v.st.items, i, i+1)
	return nil
}

func (v *view) ListOrderItems(_ context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var out []models.OrderItem
	for _, it := range v.st.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (v *view) EnsurePayment(_ context.Context, p *models.Payment) (bool, error) {
	if err := v.fault("EnsurePayment"); err != nil {
		return false, err
	}
	for _, existing := range v.st.payments {
		if existing.OrderID == p.OrderID && existing.UserID == p.UserID {
			return false, nil
		}
	}
	v.st.payments = append(v.st.payments, *p)
	return true, nil
}

func (v *view) ListPayments(_ context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range v.st.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v *view) FindPayments(_ context.Context, orderID, userID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range v.st.payments {
		if p.OrderID == orderID && p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v *view) SetPaymentStatus(_ context.Context, orderID, userID uuid.UUID, status models.PaymentStatus, by string, at time.Time) (int64, error) {
	if err := v.fault("SetPaymentStatus"); err != nil {
		return 0, err
	}
	var n int64
	for i := range v.st.payments {
		p := &v.st.payments[i]
		if p.OrderID == orderID && p.UserID == userID {
			p.Status = status
			p.Touch(by, at)
			n++
		}
	}
	return n, nil
}
