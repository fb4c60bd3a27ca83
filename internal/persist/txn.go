package persist

import (
	"database/sql"
	"fmt"

	"github.com/devrajpatel/meshkv/internal/bitmap"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/peerid"
)

// Txn is a SQLite transaction staging entry writes and per-peer bitmap
// deltas, committed atomically. Grounded on KVStoreTxn: Put mirrors
// insert() (delete-then-insert), Delete mirrors delete() (capture the
// displaced (peer_id, hlc) for bitmap subtraction), and Commit mirrors
// commit()'s per-peer upsert-or-delete-when-empty bitmap maintenance.
//
// Unlike KVStoreTxn, which only ever writes with the local peer as author
// (a single-writer local store), Txn accepts an explicit author per Put so
// it can also persist entries replicated in from other peers.
type Txn struct {
	tx        *sql.Tx
	inserts   map[peerid.ID]*bitmap.Bitmap
	deletes   map[peerid.ID]*bitmap.Bitmap
	bookmarks map[peerid.ID]hlc.HLC
}

// Begin opens a transaction.
func (s *Store) Begin() (*Txn, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("persist: begin: %w", err)
	}
	return &Txn{
		tx:        tx,
		inserts:   make(map[peerid.ID]*bitmap.Bitmap),
		deletes:   make(map[peerid.ID]*bitmap.Bitmap),
		bookmarks: make(map[peerid.ID]hlc.HLC),
	}, nil
}

// Get returns the current value for key, if present.
func (t *Txn) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRow("SELECT value FROM entries WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persist: get %s: %w", key, err)
	}
	return value, true, nil
}

// Put writes key/value authored by author at HLC h, displacing any prior
// entry at key first (mirroring insert()'s delete-then-insert order).
func (t *Txn) Put(key string, value []byte, author peerid.ID, h hlc.HLC) error {
	if err := t.delete(key); err != nil {
		return err
	}
	if _, err := t.tx.Exec(
		"INSERT INTO entries (key, value, peer_id, hlc) VALUES (?, ?, ?, ?)",
		key, value, string(author), h.ToU64(),
	); err != nil {
		return fmt.Errorf("persist: put %s: %w", key, err)
	}
	t.stageInsert(author, h)
	return nil
}

// Delete removes key, if present, staging its displaced (author, hlc) for
// bitmap subtraction on Commit.
func (t *Txn) Delete(key string) error {
	return t.delete(key)
}

func (t *Txn) delete(key string) error {
	var author string
	var h uint64
	err := t.tx.QueryRow(
		"DELETE FROM entries WHERE key = ? RETURNING peer_id, hlc", key,
	).Scan(&author, &h)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist: delete %s: %w", key, err)
	}
	t.stageDelete(peerid.ID(author), h)
	return nil
}

func (t *Txn) stageInsert(author peerid.ID, h hlc.HLC) {
	bm, ok := t.inserts[author]
	if !ok {
		bm = bitmap.New()
		t.inserts[author] = bm
	}
	bm.Add(h.ToU64())
	if h > t.bookmarks[author] {
		t.bookmarks[author] = h
	}
}

func (t *Txn) stageDelete(author peerid.ID, h uint64) {
	bm, ok := t.deletes[author]
	if !ok {
		bm = bitmap.New()
		t.deletes[author] = bm
	}
	bm.Add(h)
}

// Commit flushes staged bitmap deltas per peer (upserting or deleting the
// bitmap_state row depending on whether the result is empty) and the
// bookmark for every peer this transaction advanced, then commits the
// underlying SQLite transaction.
func (t *Txn) Commit() error {
	touched := make(map[peerid.ID]struct{})
	for author := range t.inserts {
		touched[author] = struct{}{}
	}
	for author := range t.deletes {
		touched[author] = struct{}{}
	}

	for author := range touched {
		bm, err := fetchBitmapTx(t.tx, string(author))
		if err != nil {
			return err
		}
		if ins, ok := t.inserts[author]; ok {
			bm.UnionInPlace(ins)
		}
		if del, ok := t.deletes[author]; ok {
			bm = bm.Difference(del)
		}
		if bm.IsEmpty() {
			if err := deleteBitmapTx(t.tx, string(author)); err != nil {
				return err
			}
		} else if err := upsertBitmapTx(t.tx, string(author), bm); err != nil {
			return err
		}
	}

	for author, bookmark := range t.bookmarks {
		if err := upsertPeerBookmarkTx(t.tx, string(author), bookmark.ToU64()); err != nil {
			return err
		}
	}

	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}

// Rollback discards all staged work.
func (t *Txn) Rollback() error {
	return t.tx.Rollback()
}

func fetchBitmapTx(tx *sql.Tx, peerID string) (*bitmap.Bitmap, error) {
	var blob []byte
	err := tx.QueryRow("SELECT state FROM bitmap_state WHERE peer_id = ?", peerID).Scan(&blob)
	if err == sql.ErrNoRows {
		return bitmap.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: fetch bitmap for %s: %w", peerID, err)
	}
	bm, err := bitmap.Deserialize(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: peer %s: %v", ErrCannotDeserializeBitmap, peerID, err)
	}
	return bm, nil
}

func upsertBitmapTx(tx *sql.Tx, peerID string, bm *bitmap.Bitmap) error {
	if _, err := tx.Exec(
		"INSERT INTO peers (id, bookmark) VALUES (?, 0) ON CONFLICT (id) DO NOTHING", peerID,
	); err != nil {
		return fmt.Errorf("persist: ensure peer row for %s: %w", peerID, err)
	}
	blob, err := bm.Serialize()
	if err != nil {
		return fmt.Errorf("persist: serialize bitmap for %s: %w", peerID, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO bitmap_state (peer_id, state) VALUES (?, ?) ON CONFLICT (peer_id) DO UPDATE SET state = excluded.state",
		peerID, blob,
	); err != nil {
		return fmt.Errorf("persist: upsert bitmap for %s: %w", peerID, err)
	}
	return nil
}

func deleteBitmapTx(tx *sql.Tx, peerID string) error {
	if _, err := tx.Exec("DELETE FROM bitmap_state WHERE peer_id = ?", peerID); err != nil {
		return fmt.Errorf("persist: delete bitmap for %s: %w", peerID, err)
	}
	return nil
}

func upsertPeerBookmarkTx(tx *sql.Tx, peerID string, bookmark uint64) error {
	if _, err := tx.Exec(
		"INSERT INTO peers (id, bookmark) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET bookmark = MAX(bookmark, excluded.bookmark)",
		peerID, bookmark,
	); err != nil {
		return fmt.Errorf("persist: upsert bookmark for %s: %w", peerID, err)
	}
	return nil
}
