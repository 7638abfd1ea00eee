package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"qr-ordering/internal/logger"
)

var schema = []struct {
	table string
	ddl   string
}{
	{"restaurants", `
    CREATE TABLE IF NOT EXISTS restaurants (
        id VARCHAR(36) PRIMARY KEY,
        owner_id VARCHAR(64) NOT NULL,
        name VARCHAR(255) NOT NULL,
        slug VARCHAR(128) NOT NULL,
        upi_id VARCHAR(128) NOT NULL DEFAULT '',
        UNIQUE KEY ux_restaurants_slug (slug),
        INDEX idx_restaurants_owner (owner_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"menu_items", `
    CREATE TABLE IF NOT EXISTS menu_items (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        restaurant_id VARCHAR(36) NOT NULL,
        name VARCHAR(255) NOT NULL,
        price DECIMAL(10,2) NOT NULL,
        INDEX idx_menu_items_restaurant (restaurant_id),
        CONSTRAINT fk_menu_items_restaurant FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"orders", `
    CREATE TABLE IF NOT EXISTS orders (
        id VARCHAR(36) PRIMARY KEY,
        restaurant_id VARCHAR(36) NOT NULL,
        table_id VARCHAR(64) NOT NULL,
        track_code VARCHAR(16) NOT NULL,
        total_amount DECIMAL(10,2) NOT NULL,
        status VARCHAR(32) NOT NULL,
        estimated_minutes INT NULL,
        prepaid BOOLEAN NOT NULL DEFAULT FALSE,
        cart_snapshot JSON NULL,
        upi_link TEXT NULL,
        payment_qr TEXT NULL,
        created_at TIMESTAMP(6) NOT NULL,
        status_changed_at TIMESTAMP(6) NOT NULL,
        UNIQUE KEY ux_orders_track_code (track_code),
        INDEX idx_orders_restaurant_created (restaurant_id, created_at),
        CONSTRAINT fk_orders_restaurant FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"order_items", `
    CREATE TABLE IF NOT EXISTS order_items (
        id VARCHAR(36) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        menu_item_id BIGINT NOT NULL,
        quantity INT NOT NULL,
        unit_price DECIMAL(10,2) NOT NULL,
        INDEX idx_order_items_order (order_id),
        CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders(id),
        CONSTRAINT fk_order_items_menu FOREIGN KEY (menu_item_id) REFERENCES menu_items(id),
        CONSTRAINT chk_order_items_quantity CHECK (quantity > 0)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"status_events", `
    CREATE TABLE IF NOT EXISTS status_events (
        id VARCHAR(36) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        status VARCHAR(32) NOT NULL,
        note TEXT NULL,
        created_at TIMESTAMP(6) NOT NULL,
        INDEX idx_status_events_order (order_id, created_at)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"payment_links", `
    CREATE TABLE IF NOT EXISTS payment_links (
        id VARCHAR(36) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        token VARCHAR(64) NOT NULL,
        expires_at TIMESTAMP(6) NOT NULL,
        used BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMP(6) NOT NULL,
        UNIQUE KEY ux_payment_links_token (token),
        INDEX idx_payment_links_order (order_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"push_subscriptions", `
    CREATE TABLE IF NOT EXISTS push_subscriptions (
        endpoint VARCHAR(512) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        p256dh VARCHAR(255) NOT NULL,
        auth VARCHAR(255) NOT NULL,
        created_at TIMESTAMP(6) NOT NULL,
        INDEX idx_push_subscriptions_order (order_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
}

// Migrate creates every table the service needs. It is idempotent.
func Migrate(ctx context.Context, db bun.IDB, log *logger.Logger) error {
	for _, t := range schema {
		log.LogDatabase("MIGRATE", "mysql", fmt.Sprintf("Creating %s table if not exists", t.table))
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.table, err)
		}
	}
	log.LogDatabase("SUCCESS", "mysql", "Schema ready")
	return nil
}
