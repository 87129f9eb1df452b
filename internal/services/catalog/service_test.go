package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"group-order/internal/apperror"
	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/repository/memory"
	"group-order/internal/services/auth"
)

var (
	admin   = models.Caller{ID: uuid.New(), Role: models.RoleAdmin, DisplayName: "Ada"}
	manager = models.Caller{ID: uuid.New(), Role: models.RoleManager, DisplayName: "Maria"}
	endUser = models.Caller{ID: uuid.New(), Role: models.RoleEndUser, DisplayName: "Alice"}
)

func newTestService() (*Service, *memory.Store) {
	store := memory.NewStore()
	return NewService(store, logger.NewWithWriter("test", "debug", io.Discard)), store
}

func TestRestaurants(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateRestaurant(ctx, manager, RestaurantInput{Name: "Luigi's"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.CreateRestaurant(ctx, admin, RestaurantInput{Name: "  "})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.CreateRestaurant(ctx, admin, RestaurantInput{Name: "Luigi's", DeliveryFee: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	r, err := svc.CreateRestaurant(ctx, admin, RestaurantInput{Name: "Luigi's", Address: "Main St 1", DeliveryFee: decimal.RequireFromString("4.50")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", r.CreatedBy)

	got, err := svc.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main St 1", got.Address)

	_, err = svc.GetRestaurant(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	all, err := svc.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateDeliveryFee(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r, err := svc.CreateRestaurant(ctx, admin, RestaurantInput{Name: "Luigi's", DeliveryFee: decimal.NewFromInt(5)})
	require.NoError(t, err)

	_, err = svc.UpdateDeliveryFee(ctx, manager, r.ID, decimal.NewFromInt(3))
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.UpdateDeliveryFee(ctx, admin, r.ID, decimal.NewFromInt(-3))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.UpdateDeliveryFee(ctx, admin, uuid.New(), decimal.NewFromInt(3))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	updated, err := svc.UpdateDeliveryFee(ctx, admin, r.ID, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, updated.DeliveryFee.IsZero())
	assert.Equal(t, "Ada", updated.UpdatedBy)
	require.NotNil(t, updated.UpdatedAt)
}

func TestUpdateRestaurant(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r, err := svc.CreateRestaurant(ctx, admin, RestaurantInput{Name: "Luigi's", DeliveryFee: decimal.NewFromInt(5)})
	require.NoError(t, err)

	valid := RestaurantInput{Name: "Luigi's Pizzeria", Address: "Main St 2", Phone: "+15550123", DeliveryFee: decimal.RequireFromString("7.25")}
	tests := []struct {
		name    string
		caller  models.Caller
		id      uuid.UUID
		in      RestaurantInput
		wantErr error
	}{
		{"manager", manager, r.ID, valid, apperror.ErrForbidden},
		{"blank name", admin, r.ID, RestaurantInput{Name: " "}, apperror.ErrValidation},
		{"negative fee", admin, r.ID, RestaurantInput{Name: "Luigi's", DeliveryFee: decimal.NewFromInt(-1)}, apperror.ErrValidation},
		{"unknown restaurant", admin, uuid.New(), valid, apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateRestaurant(ctx, tt.caller, tt.id, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	updated, err := svc.UpdateRestaurant(ctx, admin, r.ID, valid)
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.UpdatedBy)

	got, err := svc.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Luigi's Pizzeria", got.Name)
	assert.Equal(t, "Main St 2", got.Address)
	assert.Equal(t, "+15550123", got.Phone)
	assert.True(t, got.DeliveryFee.Equal(decimal.RequireFromString("7.25")))
	assert.Equal(t, "Ada", got.CreatedBy)
}

func TestMenuItems(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r, err := svc.CreateRestaurant(ctx, admin, RestaurantInput{Name: "Luigi's"})
	require.NoError(t, err)

	price := decimal.RequireFromString("8.50")

	_, err = svc.CreateMenuItem(ctx, endUser, r.ID, MenuItemInput{Name: "Margherita", Price: price})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.CreateMenuItem(ctx, manager, r.ID, MenuItemInput{Name: "Margherita", Price: decimal.Zero})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.CreateMenuItem(ctx, manager, r.ID, MenuItemInput{Name: strings.Repeat("x", 101), Price: price})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.CreateMenuItem(ctx, manager, uuid.New(), MenuItemInput{Name: "Margherita", Price: price})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	item, err := svc.CreateMenuItem(ctx, manager, r.ID, MenuItemInput{Name: "Margherita", Price: price})
	require.NoError(t, err)
	assert.Equal(t, r.ID, item.RestaurantID)

	items, err := svc.ListMenuItems(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Price.Equal(price))

	_, err = svc.ListMenuItems(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateMenuItem(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r, err := svc.CreateRestaurant(ctx, admin, RestaurantInput{Name: "Luigi's"})
	require.NoError(t, err)
	item, err := svc.CreateMenuItem(ctx, manager, r.ID, MenuItemInput{Name: "Margherita", Price: decimal.RequireFromString("8.50")})
	require.NoError(t, err)

	valid := MenuItemInput{Name: "Margherita XL", Description: "large", Price: decimal.RequireFromString("11.00")}
	tests := []struct {
		name    string
		caller  models.Caller
		id      uuid.UUID
		in      MenuItemInput
		wantErr error
	}{
		{"end user", endUser, item.ID, valid, apperror.ErrForbidden},
		{"zero price", manager, item.ID, MenuItemInput{Name: "Margherita", Price: decimal.Zero}, apperror.ErrValidation},
		{"negative price", admin, item.ID, MenuItemInput{Name: "Margherita", Price: decimal.NewFromInt(-2)}, apperror.ErrValidation},
		{"long name", manager, item.ID, MenuItemInput{Name: strings.Repeat("x", 101), Price: decimal.NewFromInt(1)}, apperror.ErrValidation},
		{"unknown item", manager, uuid.New(), valid, apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateMenuItem(ctx, tt.caller, tt.id, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	updated, err := svc.UpdateMenuItem(ctx, manager, item.ID, valid)
	require.NoError(t, err)
	assert.Equal(t, "Maria", updated.UpdatedBy)

	got, err := svc.GetMenuItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Margherita XL", got.Name)
	assert.Equal(t, "large", got.Description)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, r.ID, got.RestaurantID)

	_, err = svc.GetMenuItem(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRegister(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	email := "alice@example.com"
	u, err := svc.Register(ctx, auth.Registration{Name: " Alice ", Phone: "+15550101", Email: &email, Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEndUser, u.Role)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "system", u.CreatedBy)

	stored, err := store.GetUserByPhone(ctx, "+15550101")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")))

	tests := []struct {
		name    string
		reg     auth.Registration
		wantErr error
	}{
		{"duplicate phone", auth.Registration{Name: "Alice Again", Phone: "+15550101", Password: "hunter22"}, apperror.ErrConflict},
		{"missing name", auth.Registration{Phone: "+15550102", Password: "hunter22"}, apperror.ErrValidation},
		{"missing phone", auth.Registration{Name: "Bob", Password: "hunter22"}, apperror.ErrValidation},
		{"short password", auth.Registration{Name: "Bob", Phone: "+15550103", Password: "abc"}, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.reg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateUserRole(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	alice, err := svc.CreateUser(ctx, admin, UserInput{Name: "Alice", Phone: "+15550101", Password: "hunter22", Role: models.RoleEndUser})
	require.NoError(t, err)
	root, err := svc.CreateUser(ctx, admin, UserInput{Name: "Root", Phone: "+15550100", Password: "hunter22", Role: models.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name    string
		caller  models.Caller
		id      uuid.UUID
		role    models.Role
		wantErr error
	}{
		{"manager caller", manager, alice.ID, models.RoleManager, apperror.ErrForbidden},
		{"promote to admin", admin, alice.ID, models.RoleAdmin, apperror.ErrValidation},
		{"unknown role", admin, alice.ID, models.Role("Chef"), apperror.ErrValidation},
		{"demote admin", admin, root.ID, models.RoleEndUser, apperror.ErrConflict},
		{"unknown user", admin, uuid.New(), models.RoleManager, apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateUserRole(ctx, tt.caller, tt.id, tt.role)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	updated, err := svc.UpdateUserRole(ctx, admin, alice.ID, models.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, updated.Role)
	assert.Equal(t, "Ada", updated.UpdatedBy)

	stored, err := store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, stored.Role)
	assert.Equal(t, alice.PasswordHash, stored.PasswordHash)
}

func TestCreateUser(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	in := UserInput{Name: "Alice", Phone: "+15550101", Password: "hunter22", Role: models.RoleEndUser}

	_, err := svc.CreateUser(ctx, manager, in)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	u, err := svc.CreateUser(ctx, admin, in)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter22")))

	stored, err := store.GetUserByPhone(ctx, "+15550101")
	require.NoError(t, err)
	assert.Equal(t, u.ID, stored.ID)

	_, err = svc.CreateUser(ctx, admin, in)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	bad := in
	bad.Phone = "+15550102"
	bad.Password = "short"
	_, err = svc.CreateUser(ctx, admin, bad)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	bad.Password = "long-enough"
	bad.Role = models.Role("Chef")
	_, err = svc.CreateUser(ctx, admin, bad)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.ListUsers(ctx, endUser, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	role := models.RoleEndUser
	users, err := svc.ListUsers(ctx, admin, &role)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestBootstrapAdmin(t *testing.T) {
	var logs bytes.Buffer
	svc := NewService(memory.NewStore(), logger.NewWithWriter("test", "debug", &logs))
	ctx := context.Background()

	created, err := svc.BootstrapAdmin(ctx, "Admin", "", "")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = svc.BootstrapAdmin(ctx, "Admin", "+15550000", "changeme")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.BootstrapAdmin(ctx, "Other", "+15550001", "changeme")
	require.NoError(t, err)
	assert.False(t, created)

	role := models.RoleAdmin
	admins, err := svc.ListUsers(ctx, admin, &role)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "system", admins[0].CreatedBy)

	assert.Equal(t, 1, strings.Count(logs.String(), "admin_bootstrapped"))
	assert.Contains(t, logs.String(), admins[0].ID.String())
}

func TestHandlerRoutes(t *testing.T) {
	svc, _ := newTestService()
	log := logger.NewWithWriter("test", "debug", io.Discard)
	h := NewHandler(svc, log)

	// stands in for token authentication
	as := func(c models.Caller) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), c)))
			})
		}
	}

	adminMux := http.NewServeMux()
	h.RegisterRoutes(adminMux, as(admin))
	userMux := http.NewServeMux()
	h.RegisterRoutes(userMux, as(endUser))

	do := func(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(adminMux, http.MethodPost, "/api/restaurants", `{"name":"Luigi's","delivery_fee":"6.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, do(userMux, http.MethodPost, "/api/restaurants", `{"name":"X"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(adminMux, http.MethodPost, "/api/restaurants", `{"delivery_fee":"1"}`).Code)
	assert.Equal(t, http.StatusOK, do(userMux, http.MethodGet, "/api/restaurants", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(userMux, http.MethodGet, "/api/restaurants/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(userMux, http.MethodGet, "/api/restaurants/"+uuid.NewString(), "").Code)

	rec = do(adminMux, http.MethodPost, "/api/users", `{"name":"Bob","phone":"1","password":"secret1","role":"manager"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret1")
	assert.Equal(t, http.StatusConflict, do(adminMux, http.MethodPost, "/api/users", `{"name":"Bob","phone":"1","password":"secret1","role":"Manager"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(adminMux, http.MethodPost, "/api/users", `{"name":"Bob","phone":"2","password":"secret1","role":"chef"}`).Code)
	assert.Equal(t, http.StatusForbidden, do(userMux, http.MethodGet, "/api/users", "").Code)

	var bob models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bob))
	rolePath := "/api/users/" + bob.ID.String() + "/role"
	assert.Equal(t, http.StatusForbidden, do(userMux, http.MethodPut, rolePath, `{"role":"EndUser"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(adminMux, http.MethodPut, rolePath, `{"role":"Admin"}`).Code)
	rec = do(adminMux, http.MethodPut, rolePath, `{"role":"enduser"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "User role updated to EndUser")

	restaurants, err := svc.ListRestaurants(context.Background())
	require.NoError(t, err)
	require.Len(t, restaurants, 1)
	restaurantPath := "/api/restaurants/" + restaurants[0].ID.String()
	assert.Equal(t, http.StatusForbidden, do(userMux, http.MethodPut, restaurantPath, `{"name":"X"}`).Code)
	rec = do(adminMux, http.MethodPut, restaurantPath, `{"name":"Luigi's","address":"Main St 3","delivery_fee":"2.00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Main St 3")

	rec = do(adminMux, http.MethodPost, restaurantPath+"/menu-items", `{"name":"Soda","price":"1.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var soda models.MenuItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &soda))
	itemPath := "/api/menu-items/" + soda.ID.String()

	assert.Equal(t, http.StatusOK, do(userMux, http.MethodGet, itemPath, "").Code)
	assert.Equal(t, http.StatusNotFound, do(userMux, http.MethodGet, "/api/menu-items/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusForbidden, do(userMux, http.MethodPut, itemPath, `{"name":"Soda","price":"2.00"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(adminMux, http.MethodPut, itemPath, `{"name":"Soda","price":"0"}`).Code)
	rec = do(adminMux, http.MethodPut, itemPath, `{"name":"Soda","price":"2.00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"2`)
}
