package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dramahub/pkg/database"
)

func main() {
	var (
		videosOut  = flag.String("videos", "data/videos.csv", "output CSV path for the video catalog")
		historyOut = flag.String("history", "data/watch_history.csv", "output CSV path for watch history")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportVideos(ctx, db, *videosOut); err != nil {
		log.Fatalf("export videos failed: %v", err)
	}
	if err := exportWatchHistory(ctx, db, *historyOut); err != nil {
		log.Fatalf("export watch history failed: %v", err)
	}

	log.Printf("exported videos to %s and watch history to %s", *videosOut, *historyOut)
}

func exportVideos(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "source", "external_id", "title", "genres", "release_year",
		"total_episodes", "views_total", "views_24h",
	}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT v.id, v.source, v.external_id, v.title, v.genres,
               v.release_year, v.total_episodes, s.views_total, s.views_24h
        FROM videos v
        JOIN video_stats s ON s.video_id = v.id
        ORDER BY v.source, v.title
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id          int64
			src         string
			externalID  string
			title       string
			genres      sql.NullString
			releaseYear sql.NullInt64
			totalEps    sql.NullInt64
			viewsTotal  int64
			views24h    int64
		)

		if err := rows.Scan(&id, &src, &externalID, &title, &genres,
			&releaseYear, &totalEps, &viewsTotal, &views24h); err != nil {
			return err
		}

		year := ""
		if releaseYear.Valid {
			year = strconv.FormatInt(releaseYear.Int64, 10)
		}
		total := ""
		if totalEps.Valid {
			total = strconv.FormatInt(totalEps.Int64, 10)
		}

		if err := w.Write([]string{
			strconv.FormatInt(id, 10),
			src,
			externalID,
			title,
			genres.String,
			year,
			total,
			strconv.FormatInt(viewsTotal, 10),
			strconv.FormatInt(views24h, 10),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportWatchHistory(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"user_id", "video_id", "episode_number", "progress_seconds", "at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT user_id, video_id, episode_number, progress_seconds, at
        FROM user_watch_history
        ORDER BY at DESC
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID   string
			videoID  int64
			episode  int64
			progress int64
			at       sql.NullTime
		)

		if err := rows.Scan(&userID, &videoID, &episode, &progress, &at); err != nil {
			return err
		}

		watched := ""
		if at.Valid {
			watched = at.Time.UTC().Format(time.RFC3339)
		}

		if err := w.Write([]string{
			userID,
			strconv.FormatInt(videoID, 10),
			strconv.FormatInt(episode, 10),
			strconv.FormatInt(progress, 10),
			watched,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
