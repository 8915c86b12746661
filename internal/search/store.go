package search

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// applyItems folds items into scopeID's files/text rows within tx (spec
// §4.9 step 4): each item first clears any existing row for its path
// (and the text row it referenced), then, unless it's a deletion,
// inserts the new text content and a files row pointing at it.
func applyItems(tx *sqlx.Tx, scopeID int64, items []indexItem) error {
	for _, item := range items {
		oldTextID, existed, err := existingTextID(tx, scopeID, item.Path)
		if err != nil {
			return err
		}
		if existed {
			if _, err := tx.Exec(`DELETE FROM files WHERE id = ? AND scopeid = ?`, item.Path, scopeID); err != nil {
				return err
			}
			if oldTextID != 0 {
				if _, err := tx.Exec(`DELETE FROM text WHERE rowid = ?`, oldTextID); err != nil {
					return err
				}
			}
		}
		if item.Deleted {
			continue
		}

		res, err := tx.Exec(`INSERT INTO text (content) VALUES (?)`, item.Record.Content)
		if err != nil {
			return err
		}
		textID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO files (id, scopeid, path, category, title, textid) VALUES (?, ?, ?, ?, ?, ?)`,
			item.Record.ID, scopeID, item.Record.Path, item.Record.Category, item.Record.Title, textID,
		); err != nil {
			return err
		}
	}
	return nil
}

func existingTextID(tx *sqlx.Tx, scopeID int64, path string) (textID int64, existed bool, err error) {
	row := tx.QueryRowx(`SELECT textid FROM files WHERE id = ? AND scopeid = ?`, path, scopeID)
	var id sql.NullInt64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id.Int64, true, nil
}
