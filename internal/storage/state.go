package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Subscription kinds stored in the subscriptions table.
const (
	KindEmail = "email"
	KindSMS   = "sms"
)

// Outcome is a recorded session outcome.
type Outcome struct {
	Name      string
	Value     float64
	Unique    bool
	CreatedAt time.Time
}

// ErrNotFound is returned when a device value is not set.
var ErrNotFound = errors.New("not found")

// kvTable describes a two-column key/value table.
type kvTable struct {
	name, key, value string
}

var (
	tagsTable     = kvTable{"tags", "key", "value"}
	aliasesTable  = kvTable{"aliases", "label", "id"}
	triggersTable = kvTable{"triggers", "key", "value"}
	deviceTable   = kvTable{"device_info", "key", "value"}
)

func (db *DB) putAll(t kvTable, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT(%s) DO UPDATE SET %s = excluded.%s",
		t.name, t.key, t.value, t.key, t.value, t.value)
	return db.withTx(func(tx *sql.Tx) error {
		for k, v := range entries {
			if _, err := tx.Exec(query, k, v); err != nil {
				return fmt.Errorf("put %s %q: %w", t.name, k, err)
			}
		}
		return nil
	})
}

func (db *DB) deleteAll(t kvTable, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.key)
	return db.withTx(func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.Exec(query, k); err != nil {
				return fmt.Errorf("delete %s %q: %w", t.name, k, err)
			}
		}
		return nil
	})
}

func (db *DB) loadAll(t kvTable) (map[string]string, error) {
	rows, err := db.inner.Query(fmt.Sprintf("SELECT %s, %s FROM %s", t.key, t.value, t.name))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetTags upserts tags.
func (db *DB) SetTags(tags map[string]string) error { return db.putAll(tagsTable, tags) }

// RemoveTags deletes tags by key. Missing keys are ignored.
func (db *DB) RemoveTags(keys []string) error { return db.deleteAll(tagsTable, keys) }

// Tags returns every tag.
func (db *DB) Tags() (map[string]string, error) { return db.loadAll(tagsTable) }

// SetAliases upserts aliases.
func (db *DB) SetAliases(aliases map[string]string) error { return db.putAll(aliasesTable, aliases) }

// RemoveAliases deletes aliases by label.
func (db *DB) RemoveAliases(labels []string) error { return db.deleteAll(aliasesTable, labels) }

// Aliases returns every alias.
func (db *DB) Aliases() (map[string]string, error) { return db.loadAll(aliasesTable) }

// SetTriggers upserts in-app message triggers.
func (db *DB) SetTriggers(triggers map[string]string) error {
	return db.putAll(triggersTable, triggers)
}

// RemoveTriggers deletes triggers by key.
func (db *DB) RemoveTriggers(keys []string) error { return db.deleteAll(triggersTable, keys) }

// ClearTriggers deletes every trigger.
func (db *DB) ClearTriggers() error {
	_, err := db.inner.Exec("DELETE FROM triggers")
	return err
}

// Triggers returns every trigger.
func (db *DB) Triggers() (map[string]string, error) { return db.loadAll(triggersTable) }

// SetDeviceValue stores a device setting.
func (db *DB) SetDeviceValue(key, value string) error {
	return db.putAll(deviceTable, map[string]string{key: value})
}

// DeviceValue returns a device setting, or ErrNotFound.
func (db *DB) DeviceValue(key string) (string, error) {
	var v string
	err := db.inner.QueryRow("SELECT value FROM device_info WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query device_info: %w", err)
	}
	return v, nil
}

// AddSubscription records an email or SMS subscription. Adding an existing
// one is a no-op.
func (db *DB) AddSubscription(kind, address string) error {
	_, err := db.inner.Exec(
		"INSERT OR IGNORE INTO subscriptions (kind, address, created_at) VALUES (?, ?, ?)",
		kind, address, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("add %s subscription: %w", kind, err)
	}
	return nil
}

// RemoveSubscription deletes a subscription and reports whether it existed.
func (db *DB) RemoveSubscription(kind, address string) (bool, error) {
	res, err := db.inner.Exec("DELETE FROM subscriptions WHERE kind = ? AND address = ?", kind, address)
	if err != nil {
		return false, fmt.Errorf("remove %s subscription: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Subscriptions returns the addresses of kind, sorted.
func (db *DB) Subscriptions(kind string) ([]string, error) {
	rows, err := db.inner.Query("SELECT address FROM subscriptions WHERE kind = ?", kind)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, a)
	}
	sort.Strings(out)
	return out, rows.Err()
}

// RecordOutcome stores an outcome. A unique outcome already recorded under
// the same name is not stored again; the return value reports whether o was
// stored.
func (db *DB) RecordOutcome(o Outcome) (bool, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	stored := false
	err := db.withTx(func(tx *sql.Tx) error {
		if o.Unique {
			var n int
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM outcomes WHERE name = ? AND is_unique = 1", o.Name,
			).Scan(&n); err != nil {
				return fmt.Errorf("count outcomes: %w", err)
			}
			if n > 0 {
				return nil
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO outcomes (name, value, is_unique, created_at) VALUES (?, ?, ?, ?)",
			o.Name, o.Value, o.Unique, o.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}
		stored = true
		return nil
	})
	return stored, err
}

// Outcomes returns every recorded outcome, oldest first.
func (db *DB) Outcomes() ([]Outcome, error) {
	rows, err := db.inner.Query("SELECT name, value, is_unique, created_at FROM outcomes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o       Outcome
			created int64
		)
		if err := rows.Scan(&o.Name, &o.Value, &o.Unique, &created); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.CreatedAt = time.UnixMilli(created)
		out = append(out, o)
	}
	return out, rows.Err()
}
