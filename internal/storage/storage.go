// Package storage records the nearest aircraft of every poll cycle.
// Sightings are spooled to disk before they are inserted into MySQL,
// failed inserts are retried from the spool.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/file"
	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
	"github.com/go-sql-driver/mysql"
	"github.com/juju/loggo"
)

// Storage persists Sightings to disk before inserting them into a database
type Storage struct {
	ctx       context.Context
	path      string
	machineID string
	db        *sql.DB
	insert    chan inData
	dbInsert  func(Sighting) error

	stmtMu sync.RWMutex
	inStmt *sql.Stmt

	bufMu sync.Mutex
	inBuf map[string]Sighting
}

type inData struct {
	path string
	data Sighting
}

// Sighting is one stored row, nil pointers are stored as NULL
type Sighting struct {
	MachineID    string
	Type         string
	Callsign     string
	Registration string
	Altitude     *float64
	OnGround     bool
	Direction    *float64
	Distance     *float64
	SeenAt       time.Time
}

var logger = loggo.GetLogger("main.storage")
var pathProcessDurr = 1 * time.Minute

const schema = `
	CREATE TABLE IF NOT EXISTS sightings (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		machine_id VARCHAR(64) NOT NULL,
		type VARCHAR(16) NOT NULL,
		callsign VARCHAR(16) NOT NULL,
		registration VARCHAR(16) NOT NULL,
		altitude DOUBLE NULL,
		on_ground BOOLEAN NOT NULL,
		direction DOUBLE NULL,
		distance DOUBLE NULL,
		seen_at BIGINT NOT NULL,
		timestamp DATETIME NOT NULL,
		UNIQUE KEY machine_seen (machine_id, seen_at)
	)
`

// dsn options: ?loc=UTC&parseTime=true&strict=true&timeout=1s&time_zone="+00:00"

// New expects the state directory as its first argument, sightings are
// spooled in its storage subdirectory.
// If the directory cannot be created an error is returned
func New(ctx context.Context, statePath, dsn, machineID string) (*Storage, error) {
	// Open doesn't open a connection to validate the DSN!
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(30 * time.Second)
	db.SetMaxIdleConns(3)
	db.SetMaxOpenConns(3)

	s, err := newStorage(ctx, statePath, machineID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db
	s.dbInsert = s.sqlInsert

	return s, nil
}

func newStorage(ctx context.Context, statePath, machineID string) (*Storage, error) {
	path := filepath.Join(statePath, "storage")
	err := os.MkdirAll(path, 0700)
	if err != nil {
		return nil, err
	}

	return &Storage{
		ctx:       ctx,
		path:      path,
		machineID: machineID,
		inBuf:     map[string]Sighting{},
		insert:    make(chan inData, 1),
	}, nil
}

// TestConnection can be used to test whether the provided DSN actually works
// and to make sure the connection to the database is alive
func (s *Storage) TestConnection() error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	return s.db.PingContext(ctx)
}

// Close releases the database handle, call it after Run returned.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) pathForSighting(data Sighting) string {
	return filepath.Join(s.path, strconv.FormatInt(data.SeenAt.UnixNano(), 10))
}

// Record stores the nearest record of a poll cycle, recs must be ordered
// by distance. An empty list records nothing.
func (s *Storage) Record(recs []planes.Record) {
	if len(recs) == 0 {
		return
	}
	s.Insert(NewSighting(s.machineID, recs[0], time.Now()))
}

// NewSighting converts r, an unknown distance is stored as NULL.
func NewSighting(machineID string, r planes.Record, seenAt time.Time) Sighting {
	row := Sighting{
		MachineID:    machineID,
		Type:         r.Type,
		Callsign:     r.Callsign,
		Registration: r.Registration,
		Altitude:     r.Altitude,
		OnGround:     r.OnGround,
		Direction:    r.Direction,
		SeenAt:       seenAt,
	}
	if r.HasDistance() {
		d := r.Distance
		row.Distance = &d
	}
	return row
}

// Insert persists the Sighting to disk for resilience
// and tries to insert it into the DB.
func (s *Storage) Insert(data Sighting) {
	if data.SeenAt.IsZero() {
		panic("Sighting.SeenAt cannot be zero")
	}

	// UnixNano() gives a sortable filename, bump it on the rare collision
	s.bufMu.Lock()
	dp := s.pathForSighting(data)
	for _, ok := s.inBuf[dp]; ok; _, ok = s.inBuf[dp] {
		data.SeenAt = data.SeenAt.Add(time.Nanosecond)
		dp = s.pathForSighting(data)
	}
	// the in-memory copy covers a failed spool write
	s.inBuf[dp] = data
	s.bufMu.Unlock()

	if err := file.Serialize(dp, &data); err != nil {
		logger.Errorf("spooling sighting to %v failed: %v", dp, err)
	}

	// try to send the data up to the DB asap, on success the serialized file will be deleted
	select {
	case <-s.ctx.Done():
	case s.insert <- inData{path: dp, data: data}:
	default:
		logger.Debugf("Insert: sending on storage.insert would have blocked, sighting buffered")
	}
}

// Run listens on the Storage.insert channel for things to insert until
// the context is cancelled. If successful, it tries to remove the
// persisted data file. It regularly processes any persisted data files
// and buffered sightings and tries to insert them.
func (s *Storage) Run() error {
	t := time.NewTicker(pathProcessDurr)
	defer t.Stop()

	var cancel context.CancelFunc
	defer func() {
		if cancel != nil {
			cancel()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("Run: context cancelled, exiting")
			return nil

		case in := <-s.insert:
			err := s.dbInsert(in.data)
			if err != nil {
				// processPath and processBuf will retry the insert later
				logger.Warningf("inserting sighting failed: %v", err)
				continue
			}

			// the unique index on (machine_id, seen_at) makes a repeated insert harmless,
			// so a failed remove only costs a retry
			err = os.Remove(in.path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Errorf("Failed to remove path: %v error was: %v", in.path, err)
			}

			s.bufMu.Lock()
			delete(s.inBuf, in.path)
			s.bufMu.Unlock()

		case <-t.C:
			if cancel != nil {
				cancel()
				cancel = nil
			}
			var ctx context.Context
			ctx, cancel = context.WithCancel(s.ctx)
			go func() {
				s.processBuf(ctx)
				s.processPath(ctx)
			}()
		}
	}
}

// Pending returns the number of sightings not yet inserted.
func (s *Storage) Pending() int {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return len(s.inBuf)
}

func (s *Storage) processBuf(ctx context.Context) {
	s.bufMu.Lock()
	now := time.Now()
	var toInsert []inData
	for path, data := range s.inBuf {
		if diff := now.Sub(data.SeenAt); diff < time.Second {
			continue
		}

		toInsert = append(toInsert, inData{
			path: path,
			data: data,
		})
	}
	s.bufMu.Unlock()

	if len(toInsert) == 0 {
		return
	}

	logger.Tracef("number of sightings buffered: %v", len(toInsert))
	for _, in := range toInsert {
		select {
		case <-ctx.Done():
			return
		case s.insert <- in:
		}
	}
}

// processPath retries inserting the persisted data in Storage.path,
// spool files of earlier runs included.
func (s *Storage) processPath(ctx context.Context) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		logger.Errorf("listing s.path failed (%v), skipping processing", err)
		return
	}

	logger.Tracef("number of files to insert: %v", len(entries))
	for _, e := range entries {
		if e.IsDir() || file.Temporary(e.Name()) {
			continue
		}

		id := inData{
			path: filepath.Join(s.path, e.Name()),
		}

		s.bufMu.Lock()
		_, buffered := s.inBuf[id.path]
		s.bufMu.Unlock()
		if buffered {
			// processBuf already queued it
			continue
		}

		err := file.Unserialize(id.path, &id.data)
		if err != nil {
			logger.Errorf("failed unserializing %v, error was: %v", id.path, err)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case s.insert <- id:
		}
	}
}

func (s *Storage) sqlInsert(row Sighting) error {
	err := s.ensureStatement()
	if err != nil {
		return err
	}

	s.stmtMu.RLock()
	defer s.stmtMu.RUnlock()

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	// the result is irrelevant, only the error matters
	_, err = s.inStmt.ExecContext(
		ctx,
		row.MachineID,
		row.Type,
		row.Callsign,
		row.Registration,
		nullFloat(row.Altitude),
		row.OnGround,
		nullFloat(row.Direction),
		nullFloat(row.Distance),
		row.SeenAt.UnixNano(),
	)

	if duplicate(err) {
		return nil
	}
	return err
}

// duplicate reports whether err is a unique key violation,
// error codes from:
// https://dev.mysql.com/doc/refman/5.7/en/server-error-reference.html
func duplicate(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}

	switch me.Number {
	case 1062, 1586:
		return true
	}
	return false
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func (s *Storage) ensureStatement() error {
	// take read lock first to check if inStmt is nil or not
	// and if it is, take a write lock to set it
	s.stmtMu.RLock()
	if s.inStmt != nil {
		s.stmtMu.RUnlock()
		return nil
	}
	s.stmtMu.RUnlock()

	// db.Stmt is safe to use concurrently, but it is not safe
	// for us to modify the pointer pointing to it concurrently
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	if s.inStmt != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO sightings (
			machine_id, type, callsign, registration,
			altitude, on_ground, direction, distance,
			seen_at, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`)
	if err != nil {
		return err
	}
	s.inStmt = stmt

	return nil
}
