package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/tuneverse/internal/repository/connection"
)

type record struct {
	conn    connection.Conn
	session connection.Session
}

type repo struct {
	records map[string]*record
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		records: make(map[string]*record),
		logger:  logger,
	}
}

func (r *repo) Add(conn connection.Conn, session connection.Session) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", conn.Id())
	if _, ok := r.records[conn.Id()]; ok {
		r.logger.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	session.ConnId = conn.Id()
	r.records[conn.Id()] = &record{conn: conn, session: session}

	r.logger.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) Remove(connId string) (connection.Session, error) {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", connId)
	rec, ok := r.records[connId]
	if !ok {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return connection.Session{}, connection.ErrNotFound
	}
	delete(r.records, connId)

	r.logger.Debug(funcName, "result", "OK")
	return rec.session, nil
}

func (r *repo) GetConn(connId string) (connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[connId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return rec.conn, nil
}

func (r *repo) GetSession(connId string) (connection.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[connId]
	if !ok {
		return connection.Session{}, connection.ErrNotFound
	}

	return rec.session, nil
}

// UpdateSession applies fn to the stored session. The connection id cannot
// be changed.
func (r *repo) UpdateSession(connId string, fn func(*connection.Session)) error {
	funcName := "connection.inmemory.UpdateSession"
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[connId]
	if !ok {
		r.logger.Debug(funcName, "conn_id", connId, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	fn(&rec.session)
	rec.session.ConnId = connId

	return nil
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}
