package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const mediaColumns = "id, title, original_title, type, year, status, source_id, source_type, added_at, updated_at"

func scanMedia(row interface{ Scan(...any) error }) (*Media, error) {
	m := &Media{}
	var originalTitle, sourceID, sourceType sql.NullString
	err := row.Scan(&m.ID, &m.Title, &originalTitle, &m.Type, &m.Year, &m.Status,
		&sourceID, &sourceType, &m.AddedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.OriginalTitle = originalTitle.String
	m.SourceID = sourceID.String
	m.SourceType = sourceType.String
	return m, nil
}

func addMedia(q querier, m *Media) error {
	now := time.Now()
	if m.Status == "" {
		m.Status = StatusInactive
	}
	result, err := q.Exec(`
		INSERT INTO media (title, original_title, type, year, status, source_id, source_type, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Title, nullable(m.OriginalTitle), m.Type, m.Year, m.Status,
		nullable(m.SourceID), nullable(m.SourceType), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	m.ID = id
	m.AddedAt = now
	m.UpdatedAt = now
	return nil
}

// AddMedia inserts a new media entry. Sets ID, AddedAt, and UpdatedAt.
func (s *Store) AddMedia(m *Media) error { return addMedia(s.db, m) }

// AddMedia inserts a new media entry within a transaction.
func (t *Tx) AddMedia(m *Media) error { return addMedia(t.tx, m) }

func getMedia(q querier, id int64) (*Media, error) {
	m, err := scanMedia(q.QueryRow("SELECT "+mediaColumns+" FROM media WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get media %d: %w", id, mapSQLiteError(err))
	}
	return m, nil
}

// GetMedia retrieves a media entry by ID.
// Returns ErrNotFound if the entry does not exist.
func (s *Store) GetMedia(id int64) (*Media, error) { return getMedia(s.db, id) }

// GetMedia retrieves a media entry by ID within a transaction.
func (t *Tx) GetMedia(id int64) (*Media, error) { return getMedia(t.tx, id) }

// GetMediaByTitleYear finds a media entry by title and year.
// Returns nil, nil if not found.
func (s *Store) GetMediaByTitleYear(titleText string, year int) (*Media, error) {
	m, err := scanMedia(s.db.QueryRow(
		"SELECT "+mediaColumns+" FROM media WHERE title = ? AND year = ? LIMIT 1", titleText, year))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media by title/year: %w", mapSQLiteError(err))
	}
	return m, nil
}

// MediaFilter specifies criteria for listing media.
type MediaFilter struct {
	Status *MediaStatus
	Type   *MediaType
	Limit  int
}

// ListMedia returns media entries matching the filter, oldest first.
func (s *Store) ListMedia(f MediaFilter) ([]*Media, error) {
	var conditions []string
	var args []any

	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if f.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, *f.Type)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := "SELECT " + mediaColumns + " FROM media " + whereClause + " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return results, nil
}

// ListMediaByStatus returns all media in the given status, oldest first.
func (s *Store) ListMediaByStatus(status MediaStatus) ([]*Media, error) {
	return s.ListMedia(MediaFilter{Status: &status})
}

// ListRefreshCandidates returns ready media whose published content
// carries an error marker, oldest first. These are re-processed ahead
// of everything else.
func (s *Store) ListRefreshCandidates() ([]*Media, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT m.id, m.title, m.original_title, m.type, m.year, m.status,
			m.source_id, m.source_type, m.added_at, m.updated_at
		FROM media m
		JOIN video_content v ON v.media_id = m.id
		WHERE m.status = ? AND v.status = ?
		ORDER BY m.id`,
		StatusReady, VideoError,
	)
	if err != nil {
		return nil, fmt.Errorf("list refresh candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return results, nil
}

// UpdateMediaStatus changes a media entry's status.
// Returns ErrNotFound if the entry does not exist.
func (s *Store) UpdateMediaStatus(id int64, status MediaStatus) error {
	result, err := s.db.Exec(
		"UPDATE media SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update media %d status: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update media %d status: %w", id, ErrNotFound)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
