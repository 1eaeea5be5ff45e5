package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
)

// GrantUpload describes the batch currently stored for a user.
type GrantUpload struct {
	UserID     string    `json:"-"`
	BatchID    string    `json:"batchId"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	RowCount   int       `json:"rowCount"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ReplaceGrants swaps the user's stored batch for records in one transaction.
// Either every record is stored or none is.
func ReplaceGrants(ctx context.Context, db *sql.DB, upload GrantUpload, records []models.NormalizedRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM esop_grants WHERE user_id = ?`, upload.UserID); err != nil {
		return fmt.Errorf("error clearing previous grants: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO esop_grants (user_id, row_index, ticker, company, grant_date, vesting_start_date, vesting_end_date, quantity, vested, strike_price, exercise_price, current_price, fmv, status, grant_type, sale_price, sale_date, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx,
			upload.UserID, i, r.Ticker, r.Company,
			formatDate(r.GrantDate), formatDate(r.VestingStartDate), formatOptionalDate(r.VestingEndDate),
			r.Quantity.String(), r.Vested.String(), nullDecimal(r.StrikePrice), r.ExercisePrice.String(),
			nullDecimal(r.CurrentPrice), nullDecimal(r.FMV), r.Status.String(), r.Type,
			nullDecimal(r.SalePrice), formatOptionalDate(r.SaleDate), r.Notes,
		)
		if err != nil {
			return fmt.Errorf("error inserting grant (row %d, %s): %w", i+1, r.Ticker, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO grant_uploads (user_id, batch_id, filename, format, row_count, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET batch_id = excluded.batch_id, filename = excluded.filename, format = excluded.format, row_count = excluded.row_count, uploaded_at = excluded.uploaded_at`,
		upload.UserID, upload.BatchID, upload.Filename, upload.Format, len(records), upload.UploadedAt.UTC())
	if err != nil {
		return fmt.Errorf("error recording upload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing grants: %w", err)
	}
	return nil
}

// GetGrantsByUser returns the user's stored records in upload order.
func GetGrantsByUser(ctx context.Context, db *sql.DB, userID string) ([]models.NormalizedRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT ticker, company, grant_date, vesting_start_date, vesting_end_date, quantity, vested, strike_price, exercise_price, current_price, fmv, status, grant_type, sale_price, sale_date, notes FROM esop_grants WHERE user_id = ? ORDER BY row_index`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.NormalizedRecord{}
	for rows.Next() {
		var (
			r                                          models.NormalizedRecord
			grantDate, vestStart, quantity, vested     string
			exercise, status                           string
			vestEnd, strike, current, fmv, sale, saleD sql.NullString
		)
		if err := rows.Scan(&r.Ticker, &r.Company, &grantDate, &vestStart, &vestEnd, &quantity, &vested,
			&strike, &exercise, &current, &fmv, &status, &r.Type, &sale, &saleD, &r.Notes); err != nil {
			return nil, err
		}

		var ok bool
		if r.Status, ok = models.ParseStatus(status); !ok {
			return nil, fmt.Errorf("stored grant %s has unknown status %q", r.Ticker, status)
		}
		if r.GrantDate, err = utils.ParseDate(grantDate); err != nil {
			return nil, err
		}
		if r.VestingStartDate, err = utils.ParseDate(vestStart); err != nil {
			return nil, err
		}
		if r.VestingEndDate, err = parseOptionalDate(vestEnd); err != nil {
			return nil, err
		}
		if r.SaleDate, err = parseOptionalDate(saleD); err != nil {
			return nil, err
		}
		if r.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, err
		}
		if r.Vested, err = decimal.NewFromString(vested); err != nil {
			return nil, err
		}
		if r.ExercisePrice, err = decimal.NewFromString(exercise); err != nil {
			return nil, err
		}
		for _, p := range []struct {
			src sql.NullString
			dst *decimal.NullDecimal
		}{{strike, &r.StrikePrice}, {current, &r.CurrentPrice}, {fmv, &r.FMV}, {sale, &r.SalePrice}} {
			if *p.dst, err = parseNullDecimal(p.src); err != nil {
				return nil, err
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetUploadByUser returns the metadata of the user's stored batch.
func GetUploadByUser(ctx context.Context, db *sql.DB, userID string) (*GrantUpload, error) {
	u := &GrantUpload{UserID: userID}
	err := db.QueryRowContext(ctx, `SELECT batch_id, filename, format, row_count, uploaded_at FROM grant_uploads WHERE user_id = ?`, userID).
		Scan(&u.BatchID, &u.Filename, &u.Format, &u.RowCount, &u.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CountGrantsByUser returns how many records the user has stored.
func CountGrantsByUser(ctx context.Context, db *sql.DB, userID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM esop_grants WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// DeleteGrantsByUser removes the user's stored batch and returns the number
// of deleted records.
func DeleteGrantsByUser(ctx context.Context, db *sql.DB, userID string) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM esop_grants WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM grant_uploads WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

func formatDate(t time.Time) string {
	return t.Format(utils.DefaultDateFormat)
}

func formatOptionalDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func parseOptionalDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := utils.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
