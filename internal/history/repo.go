package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dramahub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Add(ctx context.Context, entry models.WatchEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_watch_history (user_id, video_id, episode_number, progress_seconds, at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.UserID, entry.VideoID, entry.EpisodeNumber, entry.ProgressSeconds, entry.At.Unix())
	if err != nil {
		return fmt.Errorf("insert watch history: %w", err)
	}
	return nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WatchEntry, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_watch_history WHERE user_id = ?
	`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count watch history: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, video_id, episode_number, progress_seconds, at
		FROM user_watch_history
		WHERE user_id = ?
		ORDER BY at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list watch history: %w", err)
	}
	defer rows.Close()

	out := make([]models.WatchEntry, 0, limit)
	for rows.Next() {
		var entry models.WatchEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.VideoID,
			&entry.EpisodeNumber, &entry.ProgressSeconds, &entry.At); err != nil {
			return nil, 0, fmt.Errorf("scan watch history: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows watch history: %w", err)
	}

	return out, total, nil
}
