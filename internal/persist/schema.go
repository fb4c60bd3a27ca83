package persist

// schemaSQL creates the four tables the storage binding needs. Peer rows
// are keyed directly by the peer's own alphanumeric ID string rather than a
// surrogate integer rowid, since a meshkv peerid.ID is already unique and
// stable.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS metadata (
	local_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS peers (
	id       TEXT PRIMARY KEY,
	bookmark INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bitmap_state (
	peer_id TEXT PRIMARY KEY REFERENCES peers(id),
	state   BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	key     TEXT PRIMARY KEY,
	value   BLOB NOT NULL,
	peer_id TEXT NOT NULL,
	hlc     INTEGER NOT NULL
);
`
