package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dramahub/pkg/models"
)

// Repo owns all writes to videos and video_stats.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	Source string
	Limit  int
	Offset int
}

const videoColumns = `id, source, external_id, title, poster, description, genres,
	release_year, rating, total_episodes, created_at, updated_at`

const videoColumnsV = `v.id, v.source, v.external_id, v.title, v.poster, v.description, v.genres,
	v.release_year, v.rating, v.total_episodes, v.created_at, v.updated_at`

// Upsert inserts or updates a video by its (source, external_id)
// natural key and guarantees the zeroed stats row exists afterwards.
// The unique constraint is the only concurrency control: two syncs
// racing on a new title both land here and the second one updates.
// A nil TotalEpisodes never clobbers a previously known count.
func (r *Repo) Upsert(ctx context.Context, d models.NormalizedDrama) (int64, error) {
	genresJSON, err := json.Marshal(d.Genres)
	if err != nil {
		return 0, fmt.Errorf("marshal genres for %s:%s: %w", d.Source, d.ID, err)
	}

	var totalEpisodes any
	if d.TotalEpisodes != nil {
		totalEpisodes = *d.TotalEpisodes
	}

	now := time.Now().UTC().Unix()
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO videos (source, external_id, title, poster, description, genres,
			release_year, rating, total_episodes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, external_id) DO UPDATE SET
		  title = excluded.title,
		  poster = excluded.poster,
		  description = excluded.description,
		  genres = excluded.genres,
		  release_year = excluded.release_year,
		  rating = excluded.rating,
		  total_episodes = COALESCE(excluded.total_episodes, total_episodes),
		  updated_at = excluded.updated_at
	`, d.Source, d.ID, d.Title, d.Poster, d.Description, string(genresJSON),
		d.ReleaseYear, d.Rating, totalEpisodes, now, now)
	if err != nil {
		return 0, fmt.Errorf("upsert video %s:%s: %w", d.Source, d.ID, err)
	}

	var id int64
	if err := r.DB.QueryRowContext(ctx, `
		SELECT id FROM videos WHERE source = ? AND external_id = ?
	`, d.Source, d.ID).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup video id %s:%s: %w", d.Source, d.ID, err)
	}

	// A video must never exist without stats. If this insert ever
	// failed after the video row landed, the OR IGNORE repairs the gap
	// on the next sync.
	if _, err := r.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO video_stats (video_id, views_total, views_24h)
		VALUES (?, 0, 0)
	`, id); err != nil {
		return 0, fmt.Errorf("ensure stats for video %d: %w", id, err)
	}

	return id, nil
}

func (r *Repo) GetByKey(ctx context.Context, source, externalID string) (*models.VideoWithStats, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+videoColumnsV+`,
		       s.views_total, s.views_24h, s.last_viewed_at
		FROM videos v
		JOIN video_stats s ON s.video_id = v.id
		WHERE v.source = ? AND v.external_id = ?
	`, source, externalID)

	vws, err := scanVideoWithStats(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get video %s:%s: %w", source, externalID, err)
	}
	return vws, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr := `SELECT COUNT(*) FROM videos`
	var args []any
	if q.Source != "" {
		sqlStr += ` WHERE source = ?`
		args = append(args, q.Source)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return total, nil
}

// List is the offset-paginated read over videos, newest first.
func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Video, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	sqlStr := `SELECT ` + videoColumns + ` FROM videos`
	var args []any
	if q.Source != "" {
		sqlStr += ` WHERE source = ?`
		args = append(args, q.Source)
	}
	sqlStr += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()
	return collectVideos(rows, limit)
}

// ListByCursor pages over videos by (created_at, id) descending. The
// cursor for this view encodes "<createdAtUnix>:<id>"; it is never
// interchangeable with the explore index's score cursor.
func (r *Repo) ListByCursor(ctx context.Context, source, cursor string, limit int) ([]models.Video, string, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sqlStr := `SELECT ` + videoColumns + ` FROM videos`
	var where []string
	var args []any
	if source != "" {
		where = append(where, `source = ?`)
		args = append(args, source)
	}
	if cursor != "" {
		ts, id, err := ParseTimeCursor(cursor)
		if err != nil {
			return nil, "", false, err
		}
		where = append(where, `(created_at < ? OR (created_at = ? AND id < ?))`)
		args = append(args, ts, ts, id)
	}
	if len(where) > 0 {
		sqlStr += ` WHERE ` + strings.Join(where, " AND ")
	}
	sqlStr += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, "", false, fmt.Errorf("cursor list videos: %w", err)
	}
	defer rows.Close()

	out, err := collectVideos(rows, limit+1)
	if err != nil {
		return nil, "", false, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	next := ""
	if len(out) > 0 {
		last := out[len(out)-1]
		next = FormatTimeCursor(last.CreatedAt.Unix(), last.ID)
	}
	return out, next, hasMore, nil
}

// GetByKeys re-hydrates full rows for cache-ranked keys, preserving the
// caller's order: ranking fidelity outranks query convenience.
func (r *Repo) GetByKeys(ctx context.Context, keys [][2]string) ([]models.Video, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var preds []string
	var args []any
	for _, k := range keys {
		preds = append(preds, `(source = ? AND external_id = ?)`)
		args = append(args, k[0], k[1])
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE `+strings.Join(preds, " OR "),
		args...)
	if err != nil {
		return nil, fmt.Errorf("get videos by keys: %w", err)
	}
	defer rows.Close()

	found, err := collectVideos(rows, len(keys))
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]models.Video, len(found))
	for _, v := range found {
		byKey[v.Source+":"+v.ExternalID] = v
	}
	out := make([]models.Video, 0, len(keys))
	for _, k := range keys {
		if v, ok := byKey[k[0]+":"+k[1]]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// IncrementViews bumps the durable counters for one view. Returns false
// when the video has not been synced yet; the caller treats that as a
// silent skip, not an error.
func (r *Repo) IncrementViews(ctx context.Context, source, externalID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE video_stats
		SET views_total = views_total + 1,
		    views_24h = views_24h + 1,
		    last_viewed_at = ?
		WHERE video_id = (SELECT id FROM videos WHERE source = ? AND external_id = ?)
	`, time.Now().UTC().Unix(), source, externalID)
	if err != nil {
		return false, fmt.Errorf("increment views %s:%s: %w", source, externalID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TopByLifetimeViews is the cold-cache fallback for trending.
func (r *Repo) TopByLifetimeViews(ctx context.Context, n int) ([]models.RankedVideo, error) {
	return r.topByStat(ctx, "views_total", n)
}

// TopByRecentViews is the cold-cache fallback for hot.
func (r *Repo) TopByRecentViews(ctx context.Context, n int) ([]models.RankedVideo, error) {
	return r.topByStat(ctx, "views_24h", n)
}

func (r *Repo) topByStat(ctx context.Context, column string, n int) ([]models.RankedVideo, error) {
	if n <= 0 || n > 50 {
		n = 20
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+videoColumnsV+`, s.`+column+`
		FROM videos v
		JOIN video_stats s ON s.video_id = v.id
		ORDER BY s.`+column+` DESC, v.id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("top by %s: %w", column, err)
	}
	defer rows.Close()

	out := make([]models.RankedVideo, 0, n)
	for rows.Next() {
		var rv models.RankedVideo
		var score int64
		if err := scanVideoInto(rows, &rv.Video, &score); err != nil {
			return nil, err
		}
		rv.Score = float64(score)
		out = append(out, rv)
	}
	return out, rows.Err()
}

// ListWithStats snapshots every video joined with its stats. Only the
// index builder uses this; request paths never pay for the join.
func (r *Repo) ListWithStats(ctx context.Context) ([]models.VideoWithStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+videoColumnsV+`,
		       s.views_total, s.views_24h, s.last_viewed_at
		FROM videos v
		JOIN video_stats s ON s.video_id = v.id
		ORDER BY v.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list with stats: %w", err)
	}
	defer rows.Close()

	var out []models.VideoWithStats
	for rows.Next() {
		vws, err := scanVideoWithStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *vws)
	}
	return out, rows.Err()
}

// DecayRecentViews multiplies every views_24h by the given factor,
// maintaining the trailing window between index rebuilds.
func (r *Repo) DecayRecentViews(ctx context.Context, factor float64) error {
	if factor < 0 || factor >= 1 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `
		UPDATE video_stats
		SET views_24h = CAST(ROUND(views_24h * ?) AS INTEGER)
		WHERE views_24h > 0
	`, factor)
	if err != nil {
		return fmt.Errorf("decay recent views: %w", err)
	}
	return nil
}

// FormatTimeCursor and ParseTimeCursor implement the raw-video cursor
// encoding "<createdAtUnix>:<id>".
func FormatTimeCursor(ts, id int64) string {
	return strconv.FormatInt(ts, 10) + ":" + strconv.FormatInt(id, 10)
}

func ParseTimeCursor(cursor string) (ts, id int64, err error) {
	parts := strings.Split(cursor, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cursor %q", cursor)
	}
	ts, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor %q", cursor)
	}
	id, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor %q", cursor)
	}
	return ts, id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideoInto(row rowScanner, v *models.Video, extra ...any) error {
	var (
		poster        sql.NullString
		description   sql.NullString
		genresJSON    string
		releaseYear   sql.NullInt64
		rating        sql.NullFloat64
		totalEpisodes sql.NullInt64
	)

	dest := []any{
		&v.ID, &v.Source, &v.ExternalID, &v.Title, &poster, &description,
		&genresJSON, &releaseYear, &rating, &totalEpisodes,
		&v.CreatedAt, &v.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	v.Poster = poster.String
	v.Description = description.String
	if releaseYear.Valid {
		v.ReleaseYear = int(releaseYear.Int64)
	}
	if rating.Valid {
		v.Rating = rating.Float64
	}
	if totalEpisodes.Valid {
		v.TotalEpisodes = int(totalEpisodes.Int64)
	}
	v.Genres = []string{}
	_ = json.Unmarshal([]byte(genresJSON), &v.Genres)
	return nil
}

func scanVideoWithStats(row rowScanner) (*models.VideoWithStats, error) {
	var vws models.VideoWithStats
	var lastViewed sql.NullTime
	if err := scanVideoInto(row, &vws.Video,
		&vws.Stats.ViewsTotal, &vws.Stats.Views24h, &lastViewed); err != nil {
		return nil, err
	}
	vws.Stats.VideoID = vws.Video.ID
	if lastViewed.Valid {
		t := lastViewed.Time
		vws.Stats.LastViewedAt = &t
	}
	return &vws, nil
}

func collectVideos(rows *sql.Rows, capacity int) ([]models.Video, error) {
	out := make([]models.Video, 0, capacity)
	for rows.Next() {
		var v models.Video
		if err := scanVideoInto(rows, &v); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
