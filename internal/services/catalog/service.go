// Package catalog manages restaurants, their menus and user accounts.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"group-order/internal/apperror"
	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/repository"
	"group-order/internal/services/auth"
)

const (
	maxNameLength     = 100
	minPasswordLength = 6
	systemActor       = "system"
)

type RestaurantInput struct {
	Name        string
	Description string
	Address     string
	Phone       string
	DeliveryFee decimal.Decimal
}

type MenuItemInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
}

type UserInput struct {
	Name     string
	Phone    string
	Email    *string
	Password string
	Role     models.Role
}

type Service struct {
	store  repository.Store
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store repository.Store, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRestaurant adds a restaurant. Admin only.
func (s *Service) CreateRestaurant(ctx context.Context, caller models.Caller, in RestaurantInput) (*models.Restaurant, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only admins can create restaurants")
	}
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if in.DeliveryFee.IsNegative() {
		return nil, apperror.Validation("delivery_fee", "must not be negative")
	}

	r := &models.Restaurant{
		ID:          uuid.New(),
		Name:        name,
		Description: in.Description,
		Address:     in.Address,
		Phone:       in.Phone,
		DeliveryFee: in.DeliveryFee,
		Audit:       models.Audit{CreatedAt: s.now(), CreatedBy: caller.Actor()},
	}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateRestaurant(ctx, r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create restaurant: %w", err)
	}
	return r, nil
}

func (s *Service) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	return s.store.ListRestaurants(ctx)
}

func (s *Service) GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	r, err := s.store.GetRestaurant(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("restaurant %s not found", id)
	}
	return r, err
}

// UpdateDeliveryFee changes a restaurant's delivery fee. Admin only. Open
// orders pick up the new fee on their next read.
func (s *Service) UpdateDeliveryFee(ctx context.Context, caller models.Caller, id uuid.UUID, fee decimal.Decimal) (*models.Restaurant, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only admins can change delivery fees")
	}
	if fee.IsNegative() {
		return nil, apperror.Validation("delivery_fee", "must not be negative")
	}

	var updated *models.Restaurant
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.GetRestaurant(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("restaurant %s not found", id)
		}
		if err != nil {
			return err
		}
		r.DeliveryFee = fee
		r.Touch(caller.Actor(), s.now())
		if err := tx.UpdateRestaurant(ctx, r); err != nil {
			return fmt.Errorf("failed to update restaurant: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateRestaurant replaces a restaurant's details, delivery fee included. Admin only.
func (s *Service) UpdateRestaurant(ctx context.Context, caller models.Caller, id uuid.UUID, in RestaurantInput) (*models.Restaurant, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only admins can edit restaurants")
	}
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if in.DeliveryFee.IsNegative() {
		return nil, apperror.Validation("delivery_fee", "must not be negative")
	}

	var updated *models.Restaurant
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.GetRestaurant(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("restaurant %s not found", id)
		}
		if err != nil {
			return err
		}
		r.Name = name
		r.Description = in.Description
		r.Address = in.Address
		r.Phone = in.Phone
		r.DeliveryFee = in.DeliveryFee
		r.Touch(caller.Actor(), s.now())
		if err := tx.UpdateRestaurant(ctx, r); err != nil {
			return fmt.Errorf("failed to update restaurant: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CreateMenuItem adds a dish to a restaurant's menu. Admins and managers only.
func (s *Service) CreateMenuItem(ctx context.Context, caller models.Caller, restaurantID uuid.UUID, in MenuItemInput) (*models.MenuItem, error) {
	if !caller.CanManageOrders() {
		return nil, apperror.Forbidden("only managers and admins can edit menus")
	}
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !in.Price.IsPositive() {
		return nil, apperror.Validation("price", "must be greater than zero")
	}

	var item *models.MenuItem
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetRestaurant(ctx, restaurantID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.NotFound("restaurant %s not found", restaurantID)
			}
			return err
		}
		item = &models.MenuItem{
			ID:           uuid.New(),
			RestaurantID: restaurantID,
			Name:         name,
			Description:  in.Description,
			Price:        in.Price,
			Audit:        models.Audit{CreatedAt: s.now(), CreatedBy: caller.Actor()},
		}
		if err := tx.CreateMenuItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create menu item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	m, err := s.store.GetMenuItem(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("menu item %s not found", id)
	}
	return m, err
}

// UpdateMenuItem changes a dish's name, description and price. Admins and
// managers only. Receipts always price items at the current menu price.
func (s *Service) UpdateMenuItem(ctx context.Context, caller models.Caller, id uuid.UUID, in MenuItemInput) (*models.MenuItem, error) {
	if !caller.CanManageOrders() {
		return nil, apperror.Forbidden("only managers and admins can edit menus")
	}
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !in.Price.IsPositive() {
		return nil, apperror.Validation("price", "must be greater than zero")
	}

	var updated *models.MenuItem
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		m, err := tx.GetMenuItem(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("menu item %s not found", id)
		}
		if err != nil {
			return err
		}
		m.Name = name
		m.Description = in.Description
		m.Price = in.Price
		m.Touch(caller.Actor(), s.now())
		if err := tx.UpdateMenuItem(ctx, m); err != nil {
			return fmt.Errorf("failed to update menu item: %w", err)
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuItem, error) {
	if _, err := s.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.store.ListMenuItems(ctx, restaurantID)
}

// CreateUser registers a user. Admin only.
func (s *Service) CreateUser(ctx context.Context, caller models.Caller, in UserInput) (*models.User, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only admins can create users")
	}
	return s.createUser(ctx, caller.Actor(), in)
}

// Register signs up a new end user. Anyone may call it.
func (s *Service) Register(ctx context.Context, reg auth.Registration) (*models.User, error) {
	return s.createUser(ctx, systemActor, UserInput{
		Name:     reg.Name,
		Phone:    reg.Phone,
		Email:    reg.Email,
		Password: reg.Password,
		Role:     models.RoleEndUser,
	})
}

// UpdateUserRole moves a user between EndUser and Manager. Admin only.
// Admin accounts keep their role and nobody is promoted to Admin this way.
func (s *Service) UpdateUserRole(ctx context.Context, caller models.Caller, userID uuid.UUID, role models.Role) (*models.User, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only admins can change roles")
	}
	if !role.Valid() {
		return nil, apperror.Validation("role", "must be one of: EndUser, Manager, Admin")
	}
	if role == models.RoleAdmin {
		return nil, apperror.Validation("role", "cannot promote users to Admin")
	}

	var updated *models.User
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("user %s not found", userID)
		}
		if err != nil {
			return err
		}
		if u.Role == models.RoleAdmin {
			return apperror.Conflict("cannot change the role of admin %s", u.Name)
		}
		u.Role = role
		u.Touch(caller.Actor(), s.now())
		if err := tx.UpdateUser(ctx, u); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListUsers returns all users, or those with the given role. Admin only.
func (s *Service) ListUsers(ctx context.Context, caller models.Caller, role *models.Role) ([]models.User, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only admins can list users")
	}
	return s.store.ListUsers(ctx, role)
}

// BootstrapAdmin creates the first admin account when none exists. It reports
// whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, name, phone, password string) (bool, error) {
	admin := models.RoleAdmin
	admins, err := s.store.ListUsers(ctx, &admin)
	if err != nil {
		return false, fmt.Errorf("failed to list admins: %w", err)
	}
	if len(admins) > 0 || phone == "" || password == "" {
		return false, nil
	}

	u, err := s.createUser(ctx, systemActor, UserInput{Name: name, Phone: phone, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return false, err
	}
	s.logger.Info("admin_bootstrapped", "Created initial admin account", "", map[string]any{
		"user_id": u.ID,
		"phone":   u.Phone,
	})
	return true, nil
}

func (s *Service) createUser(ctx context.Context, actor string, in UserInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, apperror.Validation("phone", "is required")
	}
	if !in.Role.Valid() {
		return nil, apperror.Validation("role", "must be one of: EndUser, Manager, Admin")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return nil, apperror.Validation("password", "must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Phone:        phone,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Audit:        models.Audit{CreatedAt: s.now(), CreatedBy: actor},
	}
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperror.Conflict("a user with phone %s already exists", phone)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func validateName(name string) error {
	if name == "" {
		return apperror.Validation("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return apperror.Validation("name", "must not exceed %d characters", maxNameLength)
	}
	return nil
}
