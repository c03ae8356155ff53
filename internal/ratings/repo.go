package ratings

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

// Average summarizes the community votes for one title.
type Average struct {
	Avg   float64
	Votes int
}

func (r *Repo) Add(ctx context.Context, userID, source, externalID string, rating int) (*models.VideoRating, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating out of range: %d", rating)
	}

	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO video_ratings (user_id, source, external_id, rating, at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, source, externalID, rating, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert rating: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &models.VideoRating{
		ID: id, UserID: userID, Source: source, ExternalID: externalID,
		Rating: rating, At: now,
	}, nil
}

func (r *Repo) Get(ctx context.Context, source, externalID string) (Average, error) {
	var avg sql.NullFloat64
	var votes int
	err := r.DB.QueryRowContext(ctx, `
		SELECT AVG(rating), COUNT(*) FROM video_ratings
		WHERE source = ? AND external_id = ?
	`, source, externalID).Scan(&avg, &votes)
	if err != nil {
		return Average{}, fmt.Errorf("get rating average: %w", err)
	}
	return Average{Avg: avg.Float64, Votes: votes}, nil
}

// Averages returns every title's community average, keyed by
// "source:externalId". Used by the index builder's rating strategy.
func (r *Repo) Averages(ctx context.Context) (map[string]Average, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT source, external_id, AVG(rating), COUNT(*)
		FROM video_ratings
		GROUP BY source, external_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list rating averages: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Average)
	for rows.Next() {
		var source, externalID string
		var a Average
		if err := rows.Scan(&source, &externalID, &a.Avg, &a.Votes); err != nil {
			return nil, fmt.Errorf("scan rating average: %w", err)
		}
		out[source+":"+externalID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows rating averages: %w", err)
	}
	return out, nil
}
