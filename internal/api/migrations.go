package api

import (
	"database/sql"
	"fmt"
)

// columnExists checks if a column exists on a given table (SQLite PRAGMA table_info)
func columnExists(db *sql.DB, table string, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var (
		cid     int
		name    string
		ctype   string
		notnull int
		dflt    sql.NullString
		pk      int
	)
	for rows.Next() {
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// MigrateAddDeliveredAt adds reminders.delivered_at to databases created
// before delivery tracking existed. Reminders whose time has already passed
// are stamped as delivered so the worker does not push a backlog. Idempotent.
func MigrateAddDeliveredAt(db *sql.DB) error {
	exists, err := columnExists(db, "reminders", "delivered_at")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("ALTER TABLE reminders ADD COLUMN delivered_at DATETIME"); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE reminders SET delivered_at = CURRENT_TIMESTAMP WHERE reminder_time <= CURRENT_TIMESTAMP"); err != nil {
		return err
	}
	return tx.Commit()
}
