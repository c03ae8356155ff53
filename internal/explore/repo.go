package explore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dramahub/pkg/models"
)

const (
	SortPopular = "popular"
	SortLatest  = "latest"
	SortRating  = "rating"
)

// sortColumns maps each sort mode to its precomputed score column.
// Handlers must validate the mode before calling the repo; the map is
// the only place a column name enters SQL.
var sortColumns = map[string]string{
	SortPopular: "popularity_score",
	SortLatest:  "latest_score",
	SortRating:  "rating_score",
}

func ValidSort(sort string) bool {
	_, ok := sortColumns[sort]
	return ok
}

// Repo owns the explore_index projection.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Upsert overwrites every derived field for the (source, external_id)
// key. The builder calls it once per title per run, so last write wins
// by construction.
func (r *Repo) Upsert(ctx context.Context, e models.ExploreEntry) error {
	genres, _ := json.Marshal(e.Genres)
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO explore_index
			(source, external_id, title, poster, genres, release_year,
			 total_episodes, popularity_score, latest_score, rating_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, external_id) DO UPDATE SET
			title            = excluded.title,
			poster           = excluded.poster,
			genres           = excluded.genres,
			release_year     = excluded.release_year,
			total_episodes   = excluded.total_episodes,
			popularity_score = excluded.popularity_score,
			latest_score     = excluded.latest_score,
			rating_score     = excluded.rating_score
	`, e.Source, e.ExternalID, e.Title, nullString(e.Poster), string(genres),
		nullInt(e.ReleaseYear), nullInt(e.TotalEpisodes),
		e.PopularityScore, e.LatestScore, e.RatingScore)
	if err != nil {
		return fmt.Errorf("upsert explore entry: %w", err)
	}
	return nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM explore_index`).Scan(&n)
	return n, err
}

// ListByCursor pages the index in (score DESC, id DESC) order using a
// keyset cursor. An empty cursor starts from the top. The returned
// cursor is non-empty only when more rows exist, and every row is
// visited exactly once across consecutive pages even when scores tie.
func (r *Repo) ListByCursor(ctx context.Context, sort, src, cursor string, limit int) ([]models.ExploreEntry, string, bool, error) {
	col, ok := sortColumns[sort]
	if !ok {
		return nil, "", false, fmt.Errorf("unknown sort %q", sort)
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var (
		conds []string
		args  []any
	)
	if src != "" {
		conds = append(conds, "source = ?")
		args = append(args, src)
	}
	if cursor != "" {
		score, id, err := ParseCursor(cursor)
		if err != nil {
			return nil, "", false, err
		}
		conds = append(conds, fmt.Sprintf("(%s < ? OR (%s = ? AND id < ?))", col, col))
		args = append(args, score, score, id)
	}

	q := `SELECT id, source, external_id, title, poster, genres,
	             release_year, total_episodes,
	             popularity_score, latest_score, rating_score
	      FROM explore_index`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY %s DESC, id DESC LIMIT ?", col)
	args = append(args, limit+1)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", false, fmt.Errorf("query explore index: %w", err)
	}
	defer rows.Close()

	var out []models.ExploreEntry
	for rows.Next() {
		var (
			e           models.ExploreEntry
			poster      sql.NullString
			genres      string
			releaseYear sql.NullInt64
			totalEps    sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.ExternalID, &e.Title,
			&poster, &genres, &releaseYear, &totalEps,
			&e.PopularityScore, &e.LatestScore, &e.RatingScore); err != nil {
			return nil, "", false, fmt.Errorf("scan explore entry: %w", err)
		}
		e.Poster = poster.String
		e.ReleaseYear = int(releaseYear.Int64)
		e.TotalEpisodes = int(totalEps.Int64)
		_ = json.Unmarshal([]byte(genres), &e.Genres)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", false, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}

	next := ""
	if hasMore && len(out) > 0 {
		last := out[len(out)-1]
		next = FormatCursor(scoreFor(last, sort), last.ID)
	}
	return out, next, hasMore, nil
}

func scoreFor(e models.ExploreEntry, sort string) int64 {
	switch sort {
	case SortLatest:
		return e.LatestScore
	case SortRating:
		return e.RatingScore
	default:
		return e.PopularityScore
	}
}

// FormatCursor encodes a page boundary as "<score>:<id>".
func FormatCursor(score, id int64) string {
	return strconv.FormatInt(score, 10) + ":" + strconv.FormatInt(id, 10)
}

// ParseCursor is the inverse of FormatCursor. Cursors are opaque to
// clients but round-trip through them, so reject anything malformed.
func ParseCursor(cursor string) (score, id int64, err error) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cursor %q", cursor)
	}
	score, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor %q", cursor)
	}
	id, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor %q", cursor)
	}
	return score, id, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
