package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/healthshop/clerk/internal/domain"
)

const dateLayout = "2006-01-02"

// CartItems returns the user's in-cart lines joined with their products
func (s *Store) CartItems(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT p.id, p.name, p.price, sc.quantity
		FROM shopping_cart sc
		JOIN product_listing p ON sc.product_id = p.id
		WHERE sc.user_id = ? AND sc.status = 'CART'
		ORDER BY sc.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddQuantity increments the open line for (user, product) or inserts one. The
// partial unique index makes concurrent adds converge on a single line.
func (s *Store) AddQuantity(ctx context.Context, userID, productID int64, quantity int) (domain.AddOutcome, error) {
	var outcome domain.AddOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE shopping_cart SET quantity = quantity + ?
			WHERE user_id = ? AND product_id = ? AND status = 'CART'`),
			quantity, userID, productID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n > 0 {
			outcome = domain.LineIncremented
			return nil
		}

		var stored int
		err = tx.QueryRowContext(ctx, s.q(`
			INSERT INTO shopping_cart (user_id, product_id, quantity, status)
			VALUES (?, ?, ?, 'CART')
			ON CONFLICT (user_id, product_id) WHERE status = 'CART'
			DO UPDATE SET quantity = shopping_cart.quantity + excluded.quantity
			RETURNING quantity`),
			userID, productID, quantity).Scan(&stored)
		if err != nil {
			return err
		}
		outcome = domain.LineInserted
		if stored != quantity {
			outcome = domain.LineIncremented
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add to cart: %w", err)
	}
	return outcome, nil
}

// RemoveLine deletes the open line and reports whether one existed
func (s *Store) RemoveLine(ctx context.Context, userID, productID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM shopping_cart
		WHERE user_id = ? AND product_id = ? AND status = 'CART'`),
		userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove from cart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove from cart: %w", err)
	}
	return n > 0, nil
}

// SetQuantity overwrites the quantity of the open line
func (s *Store) SetQuantity(ctx context.Context, userID, productID int64, quantity int) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE shopping_cart SET quantity = ?
		WHERE user_id = ? AND product_id = ? AND status = 'CART'`),
		quantity, userID, productID)
	if err != nil {
		return false, fmt.Errorf("update quantity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update quantity: %w", err)
	}
	return n > 0, nil
}

// Checkout marks every open line paid when at least one has a positive quantity.
// Paid lines are never touched.
func (s *Store) Checkout(ctx context.Context, userID int64, paidOn, arrival time.Time) (int64, error) {
	var paid int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var payable int
		if err := tx.QueryRowContext(ctx, s.q(`
			SELECT COUNT(*) FROM shopping_cart
			WHERE user_id = ? AND status = 'CART' AND quantity > 0`), userID).Scan(&payable); err != nil {
			return err
		}
		if payable == 0 {
			return nil
		}

		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE shopping_cart
			SET status = 'PAID', status_date = ?, estimated_arrival_date = ?
			WHERE user_id = ? AND status = 'CART'`),
			paidOn.Format(dateLayout), arrival.Format(dateLayout), userID)
		if err != nil {
			return err
		}
		paid, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("checkout: %w", err)
	}
	return paid, nil
}

// OrderLines returns every line of the user, open and paid, oldest first
func (s *Store) OrderLines(ctx context.Context, userID int64) ([]domain.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT p.id, p.name, sc.quantity, sc.status, sc.estimated_arrival_date
		FROM shopping_cart sc
		JOIN product_listing p ON sc.product_id = p.id
		WHERE sc.user_id = ?
		ORDER BY sc.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	defer rows.Close()

	lines := []domain.OrderLine{}
	for rows.Next() {
		var (
			line    domain.OrderLine
			status  string
			arrival nullDate
		)
		if err := rows.Scan(&line.ProductID, &line.Name, &line.Quantity, &status, &arrival); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.Status = domain.CartStatus(status)
		if arrival.Valid {
			t := arrival.Time
			line.EstimatedArrival = &t
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// nullDate scans a DATE column that the driver may hand back as time.Time or text
type nullDate struct {
	Time  time.Time
	Valid bool
}

func (d *nullDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v, true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into date", src)
}

func (d *nullDate) parse(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time, d.Valid = t, true
	return nil
}
