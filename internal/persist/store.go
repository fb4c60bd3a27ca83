// Package persist is the SQLite storage binding: the durable counterpart
// to the in-memory replica. A Store persists a replica's entries and
// per-peer bitmap indexes transactionally, upserting or deleting
// bitmap_state rows depending on whether the result is empty.
package persist

import (
	"database/sql"
	"fmt"

	"github.com/devrajpatel/meshkv/internal/bitmap"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/peerid"

	_ "modernc.org/sqlite"
)

// EntryRecord is a single persisted key/value entry with its provenance.
type EntryRecord struct {
	Key    string
	Value  []byte
	Author peerid.ID
	HLC    hlc.HLC
}

// PeerRecord is a peer's persisted bitmap index and bookmark.
type PeerRecord struct {
	ID       peerid.ID
	Bitmap   *bitmap.Bitmap
	Bookmark hlc.HLC
}

// Snapshot is the full persisted state of one replica.
type Snapshot struct {
	LocalID peerid.ID
	Entries []EntryRecord
	Peers   []PeerRecord
}

// Store is a SQLite-backed persistence binding for one replica.
type Store struct {
	db      *sql.DB
	localID peerid.ID
}

// Open opens (creating if necessary) a store at path, assigning a random
// local ID to a brand-new store.
func Open(path string) (*Store, error) {
	return open(path, "")
}

// OpenWithLocalID opens a store at path, requiring (on an existing store)
// or assigning (on a new one) the given local ID.
func OpenWithLocalID(path string, localID peerid.ID) (*Store, error) {
	if localID == "" {
		return nil, fmt.Errorf("persist: OpenWithLocalID requires a non-empty id")
	}
	return open(path, localID)
}

func open(path string, preferredID peerid.ID) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	localID, err := setup(db, preferredID)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, localID: localID}, nil
}

func setup(db *sql.DB, preferredID peerid.ID) (peerid.ID, error) {
	exists, err := schemaExists(db)
	if err != nil {
		return "", err
	}
	if exists {
		var localID string
		if err := db.QueryRow("SELECT local_id FROM metadata").Scan(&localID); err != nil {
			return "", fmt.Errorf("persist: fetch local id: %w", err)
		}
		if preferredID != "" && peerid.ID(localID) != preferredID {
			return "", &MismatchedLocalIDError{Want: string(preferredID), Got: localID}
		}
		return peerid.ID(localID), nil
	}

	id := preferredID
	if id == "" {
		id = peerid.Random()
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return "", fmt.Errorf("persist: apply schema: %w", err)
	}
	if _, err := db.Exec("INSERT INTO metadata (local_id) VALUES (?)", string(id)); err != nil {
		return "", fmt.Errorf("persist: insert metadata: %w", err)
	}
	if _, err := db.Exec("INSERT INTO peers (id, bookmark) VALUES (?, 0)", string(id)); err != nil {
		return "", fmt.Errorf("persist: insert local peer: %w", err)
	}
	return id, nil
}

func schemaExists(db *sql.DB) (bool, error) {
	var count int
	err := db.QueryRow("SELECT count(1) FROM sqlite_master WHERE name = 'metadata'").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("persist: check schema: %w", err)
	}
	return count > 0, nil
}

// LocalID returns the store's local peer ID.
func (s *Store) LocalID() peerid.ID { return s.localID }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveSnapshot replaces the store's persisted state wholesale with entries
// and peers, inside a single transaction. The node calls this periodically
// rather than write-through on every mutation, trading a bounded window of
// durability loss on crash for not threading a persistence hook through
// the replica's hot insert/remove path.
func (s *Store) SaveSnapshot(entries []EntryRecord, peers []PeerRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("persist: save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("persist: save snapshot: clear entries: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM bitmap_state"); err != nil {
		return fmt.Errorf("persist: save snapshot: clear bitmaps: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM peers WHERE id != ?", string(s.localID)); err != nil {
		return fmt.Errorf("persist: save snapshot: clear peers: %w", err)
	}

	for _, rec := range entries {
		if _, err := tx.Exec(
			"INSERT INTO entries (key, value, peer_id, hlc) VALUES (?, ?, ?, ?)",
			rec.Key, rec.Value, string(rec.Author), rec.HLC.ToU64(),
		); err != nil {
			return fmt.Errorf("persist: save snapshot: insert entry %s: %w", rec.Key, err)
		}
	}

	for _, pr := range peers {
		if err := upsertPeerBookmarkTx(tx, string(pr.ID), pr.Bookmark.ToU64()); err != nil {
			return err
		}
		if pr.Bitmap != nil && !pr.Bitmap.IsEmpty() {
			if err := upsertBitmapTx(tx, string(pr.ID), pr.Bitmap); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: save snapshot: commit: %w", err)
	}
	return nil
}

// Load reads the full persisted snapshot back out.
func (s *Store) Load() (*Snapshot, error) {
	snap := &Snapshot{LocalID: s.localID}

	rows, err := s.db.Query("SELECT key, value, peer_id, hlc FROM entries")
	if err != nil {
		return nil, fmt.Errorf("persist: load entries: %w", err)
	}
	for rows.Next() {
		var rec EntryRecord
		var author string
		var h uint64
		if err := rows.Scan(&rec.Key, &rec.Value, &author, &h); err != nil {
			rows.Close()
			return nil, fmt.Errorf("persist: scan entry: %w", err)
		}
		rec.Author = peerid.ID(author)
		rec.HLC = hlc.FromU64(h)
		snap.Entries = append(snap.Entries, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persist: load entries: %w", err)
	}
	rows.Close()

	peerRows, err := s.db.Query("SELECT id, bookmark FROM peers")
	if err != nil {
		return nil, fmt.Errorf("persist: load peers: %w", err)
	}
	defer peerRows.Close()
	for peerRows.Next() {
		var id string
		var bookmark uint64
		if err := peerRows.Scan(&id, &bookmark); err != nil {
			return nil, fmt.Errorf("persist: scan peer: %w", err)
		}
		bm, err := fetchBitmap(s.db, id)
		if err != nil {
			return nil, err
		}
		snap.Peers = append(snap.Peers, PeerRecord{
			ID:       peerid.ID(id),
			Bitmap:   bm,
			Bookmark: hlc.FromU64(bookmark),
		})
	}
	if err := peerRows.Err(); err != nil {
		return nil, fmt.Errorf("persist: load peers: %w", err)
	}
	return snap, nil
}

func fetchBitmap(db *sql.DB, peerID string) (*bitmap.Bitmap, error) {
	var blob []byte
	err := db.QueryRow("SELECT state FROM bitmap_state WHERE peer_id = ?", peerID).Scan(&blob)
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
