package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const videoColumns = "id, media_id, url, quality, type, format, status, score, is_russian, title, description, duration, size_bytes, added_at"

func scanVideo(row interface{ Scan(...any) error }) (*VideoContent, error) {
	v := &VideoContent{}
	var format, vtitle, description sql.NullString
	var duration, sizeBytes sql.NullInt64
	err := row.Scan(&v.ID, &v.MediaID, &v.URL, &v.Quality, &v.Type, &format,
		&v.Status, &v.Score, &v.IsRussian, &vtitle, &description, &duration, &sizeBytes, &v.AddedAt)
	if err != nil {
		return nil, err
	}
	v.Format = format.String
	v.Title = vtitle.String
	v.Description = description.String
	v.Duration = int(duration.Int64)
	v.SizeBytes = sizeBytes.Int64
	return v, nil
}

func addVideo(q querier, v *VideoContent) error {
	now := time.Now()
	if v.Status == "" {
		v.Status = VideoReady
	}
	result, err := q.Exec(`
		INSERT INTO video_content (media_id, url, quality, type, format, status, score, is_russian, title, description, duration, size_bytes, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.MediaID, v.URL, v.Quality, v.Type, nullable(v.Format), v.Status, v.Score,
		v.IsRussian, nullable(v.Title), nullable(v.Description), v.Duration, v.SizeBytes, now,
	)
	if err != nil {
		return fmt.Errorf("insert video content: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	v.ID = id
	v.AddedAt = now
	return nil
}

// AddVideoContent inserts video content records for a media entry.
func (s *Store) AddVideoContent(records ...*VideoContent) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range records {
		if err := addVideo(tx.tx, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// VideoFilter specifies criteria for listing or deleting video content.
type VideoFilter struct {
	MediaID *int64
	Type    *VideoType
	Status  *VideoStatus
}

func videoWhere(f VideoFilter) (string, []any) {
	var conditions []string
	var args []any
	if f.MediaID != nil {
		conditions = append(conditions, "media_id = ?")
		args = append(args, *f.MediaID)
	}
	if f.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, *f.Type)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ListVideoContent returns video content matching the filter.
func (s *Store) ListVideoContent(f VideoFilter) ([]*VideoContent, error) {
	where, args := videoWhere(f)
	rows, err := s.db.Query("SELECT "+videoColumns+" FROM video_content "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list video content: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*VideoContent
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video content: %w", err)
		}
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video content: %w", err)
	}
	return results, nil
}

// ListForMedia returns all video content owned by a media entry.
func (s *Store) ListForMedia(mediaID int64) ([]*VideoContent, error) {
	return s.ListVideoContent(VideoFilter{MediaID: &mediaID})
}

// DeleteVideoContent removes video content matching the filter.
// Idempotent: deleting an empty set is not an error.
func (s *Store) DeleteVideoContent(f VideoFilter) error {
	where, args := videoWhere(f)
	if where == "" {
		return fmt.Errorf("delete video content: refusing unfiltered delete")
	}
	if _, err := s.db.Exec("DELETE FROM video_content "+where, args...); err != nil {
		return fmt.Errorf("delete video content: %w", mapSQLiteError(err))
	}
	return nil
}

// ReplaceTrailer atomically deletes any existing trailer records for the
// media entry and inserts the new one. Keeps the at-most-one-trailer
// invariant even if the process dies between delete and insert.
func (s *Store) ReplaceTrailer(v *VideoContent) error {
	if v.Type != VideoTypeTrailer {
		return fmt.Errorf("replace trailer: record type is %s", v.Type)
	}
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.tx.Exec(
		"DELETE FROM video_content WHERE media_id = ? AND type = ?",
		v.MediaID, VideoTypeTrailer,
	); err != nil {
		return fmt.Errorf("delete old trailer: %w", mapSQLiteError(err))
	}
	if err := addVideo(tx.tx, v); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceFullContent atomically supersedes the authoritative full-content
// records for a media entry with the given set.
func (s *Store) ReplaceFullContent(mediaID int64, records ...*VideoContent) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.tx.Exec(
		"DELETE FROM video_content WHERE media_id = ? AND type IN (?, ?)",
		mediaID, VideoTypeFullMovie, VideoTypeEpisode,
	); err != nil {
		return fmt.Errorf("delete old full content: %w", mapSQLiteError(err))
	}
	for _, v := range records {
		if !v.IsFull() {
			return fmt.Errorf("replace full content: record type is %s", v.Type)
		}
		v.MediaID = mediaID
		if err := addVideo(tx.tx, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}
