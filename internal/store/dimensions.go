package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saleops/pagepulse/internal/analyzer"
)

// upsertDimensions ensures the dimension rows referenced by a ticket exist.
// All writes are insert-or-ignore keyed by natural business keys, so repeated
// batches never violate uniqueness.
func upsertDimensions(ctx context.Context, tx pgx.Tx, conv Conversation, res *analyzer.Analysis, now time.Time) error {
	dateKey := dimDateKey(now)
	_, err := tx.Exec(ctx, `
		INSERT INTO dim_date (date_key, full_date, year, quarter, month, month_name,
		                      week, day, day_of_week, day_name, is_weekend, is_working_day)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (date_key) DO NOTHING`,
		dateKey, now.Format("2006-01-02"), now.Year(), (int(now.Month())-1)/3+1,
		int(now.Month()), now.Month().String(), isoWeek(now), now.Day(),
		int(now.Weekday()), now.Weekday().String(), isWeekend(now), !isWeekend(now),
	)
	if err != nil {
		return fmt.Errorf("upsert dim_date: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dim_customer (customer_key, customer_name, platform, first_contact_date, last_contact_date)
		VALUES ($1, $2, 'Pancake', $3, $3)
		ON CONFLICT (customer_key) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			last_contact_date = EXCLUDED.last_contact_date`,
		conv.ID, conv.CustomerName, now,
	)
	if err != nil {
		return fmt.Errorf("upsert dim_customer: %w", err)
	}

	if key := StaffKey(res.RepQuality.StaffName); key != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO dim_staff (staff_key, staff_name, is_active)
			VALUES ($1, $2, true)
			ON CONFLICT (staff_key) DO UPDATE SET staff_name = EXCLUDED.staff_name`,
			*key, res.RepQuality.StaffName,
		)
		if err != nil {
			return fmt.Errorf("upsert dim_staff: %w", err)
		}
	}

	var detail *string
	if res.Customer.LocationDetail != "" && res.Customer.LocationDetail != "Unknown" {
		detail = &res.Customer.LocationDetail
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO dim_location (location_key, location_type, location_detail)
		VALUES ($1, $2, $3)
		ON CONFLICT (location_key) DO NOTHING`,
		locationKey(res.Customer.LocationType, res.Customer.LocationDetail),
		res.Customer.LocationType, detail,
	)
	if err != nil {
		return fmt.Errorf("upsert dim_location: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dim_customer_type (type_key, type_name)
		VALUES ($1, $1)
		ON CONFLICT (type_key) DO NOTHING`,
		res.Customer.Type,
	)
	if err != nil {
		return fmt.Errorf("upsert dim_customer_type: %w", err)
	}

	outcome := res.Outcome.Outcome
	_, err = tx.Exec(ctx, `
		INSERT INTO dim_outcome (outcome_key, outcome_name, outcome_category, is_positive)
		VALUES ($1, $1, $2, $3)
		ON CONFLICT (outcome_key) DO NOTHING`,
		outcome, analyzer.OutcomeCategory(outcome), analyzer.IsPositiveOutcome(outcome),
	)
	if err != nil {
		return fmt.Errorf("upsert dim_outcome: %w", err)
	}
	return nil
}

func isoWeek(t time.Time) int {
	_, w := t.ISOWeek()
	return w
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
