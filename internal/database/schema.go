package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables in dependency order.  Every statement is
// idempotent so Migrate can run on each start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		price_per_night DECIMAL(12,2) NOT NULL DEFAULT 0,
		hardware_pricing_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (price_per_night >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS guests (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(200) NOT NULL,
		nights_count INT NOT NULL DEFAULT 1,
		deposit DECIMAL(12,2) NULL,
		dietary_restrictions VARCHAR(500) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_guests_event (event_id),
		CONSTRAINT fk_guests_event FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE,
		CHECK (nights_count >= 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(200) NOT NULL,
		category VARCHAR(100) NOT NULL DEFAULT '',
		price DECIMAL(12,2) NOT NULL,
		sort_order INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		KEY idx_products_event (event_id),
		CONSTRAINT fk_products_event FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE,
		CHECK (price >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS consumption (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		guest_id BIGINT UNSIGNED NOT NULL,
		product_id BIGINT UNSIGNED NOT NULL,
		event_id BIGINT UNSIGNED NOT NULL,
		quantity INT NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_consumption_event_guest (event_id, guest_id),
		CONSTRAINT fk_consumption_guest FOREIGN KEY (guest_id) REFERENCES guests(id) ON DELETE CASCADE,
		CONSTRAINT fk_consumption_product FOREIGN KEY (product_id) REFERENCES products(id),
		CHECK (quantity >= 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tips (
		event_id BIGINT UNSIGNED NOT NULL,
		guest_id BIGINT UNSIGNED NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		percentage DECIMAL(6,2) NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (event_id, guest_id),
		CONSTRAINT fk_tips_guest FOREIGN KEY (guest_id) REFERENCES guests(id) ON DELETE CASCADE,
		CHECK (amount >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS hardware_items (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		type VARCHAR(50) NOT NULL,
		price_per_night DECIMAL(12,2) NOT NULL,
		quantity_available INT NOT NULL DEFAULT 1,
		CHECK (price_per_night >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS hardware_reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		guest_id BIGINT UNSIGNED NOT NULL,
		hardware_item_id BIGINT UNSIGNED NOT NULL,
		event_id BIGINT UNSIGNED NOT NULL,
		quantity INT NOT NULL DEFAULT 1,
		nights_count INT NOT NULL DEFAULT 1,
		total_price DECIMAL(12,2) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_hwres_event_guest (event_id, guest_id),
		CONSTRAINT fk_hwres_guest FOREIGN KEY (guest_id) REFERENCES guests(id) ON DELETE CASCADE,
		CONSTRAINT fk_hwres_item FOREIGN KEY (hardware_item_id) REFERENCES hardware_items(id),
		CHECK (quantity >= 1),
		CHECK (nights_count >= 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		row_label VARCHAR(8) NOT NULL,
		seat_number INT UNSIGNED NOT NULL,
		guest_id BIGINT UNSIGNED NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_seat (event_id, row_label, seat_number),
		CONSTRAINT fk_seats_event FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE,
		CONSTRAINT fk_seats_guest FOREIGN KEY (guest_id) REFERENCES guests(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('ADMIN','GUEST') NOT NULL DEFAULT 'GUEST',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
