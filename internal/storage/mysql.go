package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"qr-ordering/internal/config"
	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
)

const (
	mysqlDuplicateEntry = 1062
	mysqlFKChildRow     = 1452
)

type MySQLStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	sqldb, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{
		db:  bun.NewDB(sqldb, mysqldialect.New()),
		log: log,
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established")
	return store, nil
}

// DB exposes the bun handle for the schema tool.
func (s *MySQLStore) DB() *bun.DB {
	return s.db
}

// translate maps driver errors onto the storage sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %s", ErrDuplicate, myErr.Message)
		case mysqlFKChildRow:
			return fmt.Errorf("%w: %s", ErrConstraint, myErr.Message)
		}
	}
	return err
}

func (s *MySQLStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	r := new(models.Restaurant)
	if err := s.db.NewSelect().Model(r).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return r, nil
}

func (s *MySQLStore) GetRestaurantByOwner(ctx context.Context, ownerID string) (*models.Restaurant, error) {
	r := new(models.Restaurant)
	if err := s.db.NewSelect().Model(r).Where("owner_id = ?", ownerID).Limit(1).Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return r, nil
}

func (s *MySQLStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving order %s", order.ID))
	if _, err := s.db.NewInsert().Model(order).Exec(ctx); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save order %s: %v", order.ID, err))
		return translate(err)
	}
	return nil
}

func (s *MySQLStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o := new(models.Order)
	if err := s.db.NewSelect().Model(o).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return o, nil
}

func (s *MySQLStore) GetOrderByTrackCode(ctx context.Context, code string) (*models.Order, error) {
	o := new(models.Order)
	if err := s.db.NewSelect().Model(o).Where("track_code = ?", code).Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return o, nil
}

func (s *MySQLStore) ListOrdersByRestaurant(ctx context.Context, restaurantID string, limit, offset int) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.db.NewSelect().
		Model(&orders).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list orders for restaurant %s: %v", restaurantID, err))
		return nil, translate(err)
	}
	return orders, nil
}

// UpdateOrder overwrites every column; concurrent writers are last-write-wins.
func (s *MySQLStore) UpdateOrder(ctx context.Context, order *models.Order) error {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Updating order %s -> %s", order.ID, order.Status))
	res, err := s.db.NewUpdate().Model(order).WherePK().Exec(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update order %s: %v", order.ID, err))
		return translate(err)
	}
	return s.confirmUpdated(ctx, res, order.ID)
}

// UpdateOrderStatus is last-write-wins on the status columns only.
func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Setting order %s status -> %s", order.ID, order.Status))
	res, err := s.db.NewUpdate().
		Model(order).
		Column("status", "status_changed_at", "estimated_minutes").
		WherePK().
		Exec(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update status of order %s: %v", order.ID, err))
		return translate(err)
	}
	return s.confirmUpdated(ctx, res, order.ID)
}

func (s *MySQLStore) confirmUpdated(ctx context.Context, res sql.Result, orderID string) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for an identical row too, so confirm existence.
		exists, err := s.db.NewSelect().Model((*models.Order)(nil)).Where("id = ?", orderID).Exists(ctx)
		if err != nil {
			return translate(err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (s *MySQLStore) DeleteOrder(ctx context.Context, id string) error {
	s.log.LogDatabase("DELETE", "mysql", fmt.Sprintf("Deleting order %s", id))
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.OrderItem)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return translate(err)
		}
		if _, err := tx.NewDelete().Model((*models.Order)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return translate(err)
		}
		return nil
	})
}

func (s *MySQLStore) InsertOrderItems(ctx context.Context, items []*models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving %d items for order %s", len(items), items[0].OrderID))
	if _, err := s.db.NewInsert().Model(&items).Exec(ctx); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save items for order %s: %v", items[0].OrderID, err))
		return translate(err)
	}
	return nil
}

func (s *MySQLStore) HasOrderItems(ctx context.Context, orderID string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*models.OrderItem)(nil)).Where("order_id = ?", orderID).Exists(ctx)
	return exists, translate(err)
}

func (s *MySQLStore) ListOrderItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	var items []*models.OrderItem
	if err := s.db.NewSelect().Model(&items).Where("order_id = ?", orderID).Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (s *MySQLStore) AppendStatusEvent(ctx context.Context, event *models.StatusEvent) error {
	if _, err := s.db.NewInsert().Model(event).Exec(ctx); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to append status event for order %s: %v", event.OrderID, err))
		return translate(err)
	}
	return nil
}

func (s *MySQLStore) ListStatusEvents(ctx context.Context, orderID string) ([]*models.StatusEvent, error) {
	var events []*models.StatusEvent
	err := s.db.NewSelect().Model(&events).Where("order_id = ?", orderID).Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return events, nil
}

func (s *MySQLStore) CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error {
	if _, err := s.db.NewInsert().Model(link).Exec(ctx); err != nil {
		return translate(err)
	}
	return nil
}

func (s *MySQLStore) GetPaymentLink(ctx context.Context, token string) (*models.PaymentLink, error) {
	link := new(models.PaymentLink)
	if err := s.db.NewSelect().Model(link).Where("token = ?", token).Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return link, nil
}

func (s *MySQLStore) ClaimPaymentLink(ctx context.Context, token string, now time.Time) (*models.PaymentLink, error) {
	res, err := s.db.NewUpdate().
		Model((*models.PaymentLink)(nil)).
		Set("used = ?", true).
		Where("token = ?", token).
		Where("used = ?", false).
		Where("expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return nil, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotClaimable
	}
	return s.GetPaymentLink(ctx, token)
}

func (s *MySQLStore) UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	_, err := s.db.NewInsert().
		Model(sub).
		On("DUPLICATE KEY UPDATE").
		Set("order_id = VALUES(order_id)").
		Set("p256dh = VALUES(p256dh)").
		Set("auth = VALUES(auth)").
		Exec(ctx)
	return translate(err)
}

func (s *MySQLStore) ListPushSubscriptions(ctx context.Context, orderID string) ([]*models.PushSubscription, error) {
	var subs []*models.PushSubscription
	if err := s.db.NewSelect().Model(&subs).Where("order_id = ?", orderID).Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

func (s *MySQLStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.NewDelete().Model((*models.PushSubscription)(nil)).Where("endpoint = ?", endpoint).Exec(ctx)
	return translate(err)
}

func (s *MySQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}
