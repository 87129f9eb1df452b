package database

// Restaurant and menu queries
const (
	restaurantColumns = `id, name, description, address, phone, delivery_fee,
		created_at, created_by, updated_at, updated_by`

	InsertRestaurantSQL = `
		INSERT INTO restaurants (id, name, description, address, phone, delivery_fee, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	UpdateRestaurantSQL = `
		UPDATE restaurants
		SET name = $2, description = $3, address = $4, phone = $5, delivery_fee = $6,
			updated_at = $7, updated_by = $8
		WHERE id = $1`

	GetRestaurantSQL = `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`

	ListRestaurantsSQL = `SELECT ` + restaurantColumns + ` FROM restaurants ORDER BY name, id`

	menuItemColumns = `id, restaurant_id, name, description, price,
		created_at, created_by, updated_at, updated_by`

	InsertMenuItemSQL = `
		INSERT INTO menu_items (id, restaurant_id, name, description, price, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	UpdateMenuItemSQL = `
		UPDATE menu_items
		SET name = $2, description = $3, price = $4, updated_at = $5, updated_by = $6
		WHERE id = $1`

	GetMenuItemSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`

	GetMenuItemsByIDsSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = ANY($1)`

	ListMenuItemsSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE restaurant_id = $1 ORDER BY name, id`
)

// User queries
const (
	userColumns = `id, name, phone, email, password_hash, role,
		created_at, created_by, updated_at, updated_by`

	InsertUserSQL = `
		INSERT INTO users (id, name, phone, email, password_hash, role, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	UpdateUserSQL = `
		UPDATE users
		SET name = $2, email = $3, role = $4, updated_at = $5, updated_by = $6
		WHERE id = $1`

	GetUserSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	GetUserByPhoneSQL = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`

	GetUsersByIDsSQL = `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	ListUsersSQL = `
		SELECT ` + userColumns + ` FROM users
		WHERE ($1::text IS NULL OR role = $1)
		ORDER BY name, id`
)

// Order queries
const (
	orderColumns = `id, restaurant_id, manager_id, status, order_date, closed_at,
		created_at, created_by, updated_at, updated_by`

	InsertOrderSQL = `
		INSERT INTO orders (id, restaurant_id, manager_id, status, order_date, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	GetOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// item mutations share-lock the order so a concurrent close waits for them
	LockOrderForShareSQL = GetOrderSQL + ` FOR SHARE`

	LockOrderForUpdateSQL = GetOrderSQL + ` FOR UPDATE`

	UpdateOrderSQL = `
		UPDATE orders
		SET status = $2, closed_at = $3, updated_at = $4, updated_by = $5
		WHERE id = $1`

	ListOrdersSQL = `
		SELECT ` + orderColumns + ` FROM orders o
		WHERE ($1::text IS NULL OR o.status = $1)
		  AND ($2::uuid IS NULL OR o.restaurant_id = $2)
		  AND ($3::uuid IS NULL
			OR EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.user_id = $3)
			OR EXISTS (SELECT 1 FROM payments p WHERE p.order_id = o.id AND p.user_id = $3))
		ORDER BY o.order_date DESC, o.created_at DESC, o.id`
)

// Order item queries
const (
	orderItemColumns = `id, order_id, user_id, menu_item_id, quantity, note,
		created_at, created_by, updated_at, updated_by`

	InsertOrderItemSQL = `
		INSERT INTO order_items (id, order_id, user_id, menu_item_id, quantity, note, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	GetOrderItemSQL = `SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1`

	UpdateOrderItemSQL = `
		UPDATE order_items
		SET quantity = $2, note = $3, updated_at = $4, updated_by = $5
		WHERE id = $1`

	DeleteOrderItemSQL = `DELETE FROM order_items WHERE id = $1`

	ListOrderItemsSQL = `
		SELECT ` + orderItemColumns + ` FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id`
)

// Payment queries
const (
	paymentColumns = `id, order_id, user_id, status,
		created_at, created_by, updated_at, updated_by`

	// EnsurePaymentSQL relies on uq_payments_order_user so a racing first
	// contribution never creates a second row
	EnsurePaymentSQL = `
		INSERT INTO payments (id, order_id, user_id, status, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, user_id) DO NOTHING`

	ListPaymentsSQL = `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1
		ORDER BY created_at, id`

	FindPaymentsSQL = `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 AND user_id = $2
		ORDER BY created_at, id`

	UpdatePaymentStatusSQL = `
		UPDATE payments
		SET status = $3, updated_at = $4, updated_by = $5
		WHERE order_id = $1 AND user_id = $2`
)
