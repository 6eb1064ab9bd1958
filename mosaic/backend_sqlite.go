package mosaic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func init() {
	registerScheme("sqlite", newSQLiteBackend)
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS mosaic_metadata (
	mosaic TEXT PRIMARY KEY,
	document TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS mosaic_tiles (
	mosaic TEXT NOT NULL,
	quadkey TEXT NOT NULL,
	assets TEXT NOT NULL,
	PRIMARY KEY (mosaic, quadkey)
);
`

// sqliteBackend hosts N mosaics in one file, one metadata row and many
// tile rows per mosaic. Per-row queries follow pmtiles/convert.go's
// PrepareTransient/Step/Bind* usage of zombiezen.com/go/sqlite; schema
// setup and transactional writes use that module's sqlitex helpers.
type sqliteBackend struct {
	baseBackend
	conn   *sqlite.Conn
	mosaic string
}

func newSQLiteBackend(ctx context.Context, uri string, initial, cached *Document) (Backend, error) {
	path, mosaicName, err := parseSQLiteURI(uri)
	if err != nil {
		return nil, newBackendError("sqlite", uri, "open", err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, newBackendError("sqlite", uri, "open", err)
	}

	if err := sqlitex.ExecScript(conn, sqliteSchema); err != nil {
		conn.Close()
		return nil, newBackendError("sqlite", uri, "schema", err)
	}

	b := &sqliteBackend{
		baseBackend: baseBackend{uri: uri, kind: "sqlite"},
		conn:        conn,
		mosaic:      mosaicName,
	}

	if initial != nil {
		b.doc = initial
		b.state = StateFresh
		return b, nil
	}

	if cached != nil {
		b.doc = cached
		b.state = StateLoaded
		return b, nil
	}

	doc, err := b.read()
	if err != nil {
		conn.Close()
		return nil, err
	}
	b.doc = doc
	b.state = StateLoaded
	return b, nil
}

// parseSQLiteURI splits "sqlite:///path/to.db:mosaic_name" into the
// filesystem path and mosaic name, matching the URI form's one
// non-leading colon as the name separator.
func parseSQLiteURI(uri string) (path, mosaicName string, err error) {
	rest := strings.TrimPrefix(uri, "sqlite://")
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("malformed sqlite URI %q: expected path:mosaic_name", uri)
	}
	return rest[:idx], rest[idx+1:], nil
}

func (b *sqliteBackend) read() (*Document, error) {
	stmt, _, err := b.conn.PrepareTransient("SELECT document FROM mosaic_metadata WHERE mosaic = ?")
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}
	defer stmt.Finalize()
	stmt.BindText(1, b.mosaic)

	hasRow, err := stmt.Step()
	recordBackendRead(b.kind, err)
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}
	if !hasRow {
		return nil, newMosaicNotFoundError(b.uri)
	}

	var doc Document
	if err := json.Unmarshal([]byte(stmt.ColumnText(0)), &doc); err != nil {
		return nil, newBackendError(b.kind, b.uri, "decode", err)
	}

	doc.Tiles = map[string][]string{}
	tstmt, _, err := b.conn.PrepareTransient("SELECT quadkey, assets FROM mosaic_tiles WHERE mosaic = ?")
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}
	defer tstmt.Finalize()
	tstmt.BindText(1, b.mosaic)
	for {
		hasRow, err := tstmt.Step()
		if err != nil {
			return nil, newBackendError(b.kind, b.uri, "read", err)
		}
		if !hasRow {
			break
		}
		var assets []string
		if err := json.Unmarshal([]byte(tstmt.ColumnText(1)), &assets); err != nil {
			return nil, newBackendError(b.kind, b.uri, "decode", err)
		}
		doc.Tiles[tstmt.ColumnText(0)] = assets
	}
	return &doc, nil
}

func (b *sqliteBackend) exists() bool {
	stmt, _, err := b.conn.PrepareTransient("SELECT 1 FROM mosaic_metadata WHERE mosaic = ?")
	if err != nil {
		return false
	}
	defer stmt.Finalize()
	stmt.BindText(1, b.mosaic)
	hasRow, err := stmt.Step()
	return err == nil && hasRow
}

// Write persists the whole document inside one savepoint so a mid-write
// failure leaves the file at its prior state.
func (b *sqliteBackend) Write(ctx context.Context, overwrite bool) (err error) {
	if !overwrite && b.exists() {
		return newMosaicExistsError(b.uri)
	}

	release := sqlitex.Save(b.conn)
	defer func() {
		release(&err)
		recordBackendWrite(b.kind, err)
	}()

	if err = b.writeLocked(); err != nil {
		return err
	}

	b.state = StatePersisted
	globalCache.InvalidateWritten(b.cacheKey(), b.doc)
	return nil
}

func (b *sqliteBackend) writeLocked() error {
	stripped := b.doc.StrippedTiles()

	toWrite := *b.doc
	toWrite.Tiles = stripped
	header, err := json.Marshal(&toWrite)
	if err != nil {
		return newBackendError(b.kind, b.uri, "encode", err)
	}

	stmt, _, err := b.conn.PrepareTransient(
		"INSERT INTO mosaic_metadata (mosaic, document) VALUES (?, ?) " +
			"ON CONFLICT(mosaic) DO UPDATE SET document = excluded.document")
	if err != nil {
		return newBackendError(b.kind, b.uri, "write", err)
	}
	stmt.BindText(1, b.mosaic)
	stmt.BindText(2, string(header))
	if _, err := stmt.Step(); err != nil {
		stmt.Finalize()
		return newBackendError(b.kind, b.uri, "write", err)
	}
	stmt.Finalize()

	del, _, err := b.conn.PrepareTransient("DELETE FROM mosaic_tiles WHERE mosaic = ?")
	if err != nil {
		return newBackendError(b.kind, b.uri, "write", err)
	}
	del.BindText(1, b.mosaic)
	if _, err := del.Step(); err != nil {
		del.Finalize()
		return newBackendError(b.kind, b.uri, "write", err)
	}
	del.Finalize()

	for qk, assets := range stripped {
		payload, err := json.Marshal(assets)
		if err != nil {
			return newBackendError(b.kind, b.uri, "encode", err)
		}
		ins, _, err := b.conn.PrepareTransient("INSERT INTO mosaic_tiles (mosaic, quadkey, assets) VALUES (?, ?, ?)")
		if err != nil {
			return newBackendError(b.kind, b.uri, "write", err)
		}
		ins.BindText(1, b.mosaic)
		ins.BindText(2, qk)
		ins.BindText(3, string(payload))
		_, err = ins.Step()
		ins.Finalize()
		if err != nil {
			return newBackendError(b.kind, b.uri, "write", err)
		}
	}
	return nil
}

func (b *sqliteBackend) Update(ctx context.Context, features []*geojson.Feature, opts UpdateOptions) error {
	merged, err := Update(b.doc, features, opts)
	if err != nil {
		return err
	}
	b.doc = merged
	b.state = StateDirty
	return b.Write(ctx, true)
}

func (b *sqliteBackend) Close() error {
	b.state = StateClosed
	return b.conn.Close()
}
