package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"group-order/internal/database"
	"group-order/internal/models"
	"group-order/internal/repository"
)

func scanRestaurant(row pgx.Row) (*models.Restaurant, error) {
	var r models.Restaurant
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&r.Address,
		&r.Phone,
		&r.DeliveryFee,
		&r.CreatedAt,
		&r.CreatedBy,
		&r.UpdatedAt,
		&r.UpdatedBy,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var m models.MenuItem
	err := row.Scan(
		&m.ID,
		&m.RestaurantID,
		&m.Name,
		&m.Description,
		&m.Price,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.UpdatedAt,
		&m.UpdatedBy,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &m, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Phone,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.CreatedAt,
		&u.CreatedBy,
		&u.UpdatedAt,
		&u.UpdatedBy,
	)
	if err != nil {
		return nil, mapError(err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (q *queries) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	_, err := q.q.Exec(ctx, database.InsertRestaurantSQL,
		r.ID, r.Name, r.Description, r.Address, r.Phone, r.DeliveryFee, r.CreatedAt, r.CreatedBy)
	return mapError(err)
}

func (q *queries) UpdateRestaurant(ctx context.Context, r *models.Restaurant) error {
	tag, err := q.q.Exec(ctx, database.UpdateRestaurantSQL,
		r.ID, r.Name, r.Description, r.Address, r.Phone, r.DeliveryFee, r.UpdatedAt, r.UpdatedBy)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (q *queries) GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	return scanRestaurant(q.q.QueryRow(ctx, database.GetRestaurantSQL, id))
}

func (q *queries) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := q.q.Query(ctx, database.ListRestaurantsSQL)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRestaurant)
}

func (q *queries) CreateMenuItem(ctx context.Context, m *models.MenuItem) error {
	_, err := q.q.Exec(ctx, database.InsertMenuItemSQL,
		m.ID, m.RestaurantID, m.Name, m.Description, m.Price, m.CreatedAt, m.CreatedBy)
	return mapError(err)
}

func (q *queries) UpdateMenuItem(ctx context.Context, m *models.MenuItem) error {
	tag, err := q.q.Exec(ctx, database.UpdateMenuItemSQL,
		m.ID, m.Name, m.Description, m.Price, m.UpdatedAt, m.UpdatedBy)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (q *queries) GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	return scanMenuItem(q.q.QueryRow(ctx, database.GetMenuItemSQL, id))
}

func (q *queries) GetMenuItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.MenuItem, error) {
	out := make(map[uuid.UUID]*models.MenuItem)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.q.Query(ctx, database.GetMenuItemsByIDsSQL, repository.Dedupe(ids))
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanMenuItem)
	if err != nil {
		return nil, err
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

func (q *queries) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuItem, error) {
	rows, err := q.q.Query(ctx, database.ListMenuItemsSQL, restaurantID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMenuItem)
}

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	_, err := q.q.Exec(ctx, database.InsertUserSQL,
		u.ID, u.Name, u.Phone, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.CreatedBy)
	return mapError(err)
}

func (q *queries) UpdateUser(ctx context.Context, u *models.User) error {
	tag, err := q.q.Exec(ctx, database.UpdateUserSQL,
		u.ID, u.Name, u.Email, string(u.Role), u.UpdatedAt, u.UpdatedBy)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (q *queries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(q.q.QueryRow(ctx, database.GetUserSQL, id))
}

func (q *queries) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return scanUser(q.q.QueryRow(ctx, database.GetUserByPhoneSQL, phone))
}

func (q *queries) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.q.Query(ctx, database.GetUsersByIDsSQL, repository.Dedupe(ids))
	if err != nil {
		return nil, err
	}
	users, err := collect(rows, scanUser)
	if err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (q *queries) ListUsers(ctx context.Context, role *models.Role) ([]models.User, error) {
	var roleArg *string
	if role != nil {
		r := string(*role)
		roleArg = &r
	}
	rows, err := q.q.Query(ctx, database.ListUsersSQL, roleArg)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}
