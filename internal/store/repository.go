package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Repository implements domain.PostStore and domain.UserStore on top of
// database/sql. Queries are written with '?' placeholders and rebound for
// Postgres.
type Repository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewRepository opens a database with the given driver ("postgres" or
// "sqlite"), verifies the connection and creates the schema. The caller
// should call Close when the repository is no longer needed.
func NewRepository(ctx context.Context, driver, dsn string) (*Repository, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection serialises writers and keeps :memory: databases
		// from splitting per connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Repository{
		db:     db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreatePost inserts a new post with a fresh id and server timestamp.
func (r *Repository) CreatePost(ctx context.Context, p domain.NewPost) (*domain.Post, error) {
	post := &domain.Post{
		ID:              uuid.NewString(),
		AuthorID:        p.AuthorID,
		Title:           p.Title,
		Description:     p.Description,
		MediaReference:  p.MediaReference,
		IsExternalEmbed: p.IsExternalEmbed,
		CreatedAt:       r.now().Truncate(time.Microsecond),
	}

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO posts (id, author_id, title, description, media_ref, is_external, created_at, share_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`),
		post.ID, post.AuthorID, post.Title, post.Description,
		post.MediaReference, post.IsExternalEmbed, post.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return nil, domain.Unavailable("insert post", err)
	}
	return post, nil
}

// GetPost returns a post with its like and share sets.
func (r *Repository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, author_id, title, description, media_ref, is_external, created_at, share_count
		FROM posts WHERE id = ?`), id)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Unavailable("get post", err)
	}

	posts := []domain.Post{*post}
	if err := r.loadSets(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// DeletePost removes a post together with its likes and shares.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	return r.inTx(ctx, "delete post", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM posts WHERE id = ?`), id)
		if err != nil {
			return domain.Unavailable("delete post", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM post_likes WHERE post_id = ?`), id); err != nil {
			return domain.Unavailable("delete likes", err)
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM post_shares WHERE post_id = ?`), id); err != nil {
			return domain.Unavailable("delete shares", err)
		}
		return nil
	})
}

// GetFeedPosts retrieves posts newest first, strictly after the cursor.
func (r *Repository) GetFeedPosts(ctx context.Context, limit int, after *domain.Cursor) ([]domain.Post, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if after != nil {
		rows, err = r.db.QueryContext(ctx, r.rebind(`
			SELECT id, author_id, title, description, media_ref, is_external, created_at, share_count
			FROM posts
			WHERE created_at < ? OR (created_at = ? AND id < ?)
			ORDER BY created_at DESC, id DESC
			LIMIT ?`),
			after.CreatedAt.UnixMicro(), after.CreatedAt.UnixMicro(), after.ID, limit,
		)
		if err != nil {
			return nil, domain.Unavailable(fmt.Sprintf("query posts with cursor (time=%v, id=%s, limit=%d)", after.CreatedAt, after.ID, limit), err)
		}
	} else {
		rows, err = r.db.QueryContext(ctx, r.rebind(`
			SELECT id, author_id, title, description, media_ref, is_external, created_at, share_count
			FROM posts
			ORDER BY created_at DESC, id DESC
			LIMIT ?`),
			limit,
		)
		if err != nil {
			return nil, domain.Unavailable(fmt.Sprintf("query posts without cursor (limit=%d)", limit), err)
		}
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, domain.Unavailable("scan post", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("iterate posts", err)
	}

	if err := r.loadSets(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// AddLike adds userID to the post's likes. Duplicate adds are no-ops.
func (r *Repository) AddLike(ctx context.Context, postID, userID string) (int, error) {
	return r.mutateLikes(ctx, postID, `
		INSERT INTO post_likes (post_id, user_id) VALUES (?, ?)
		ON CONFLICT (post_id, user_id) DO NOTHING`, postID, userID)
}

// RemoveLike removes userID from the post's likes. Removing a non-member is
// a no-op.
func (r *Repository) RemoveLike(ctx context.Context, postID, userID string) (int, error) {
	return r.mutateLikes(ctx, postID, `DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
}

func (r *Repository) mutateLikes(ctx context.Context, postID, stmt string, args ...any) (int, error) {
	var count int
	err := r.inTx(ctx, "update likes", func(tx *sql.Tx) error {
		if err := r.requirePost(ctx, tx, postID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.rebind(stmt), args...); err != nil {
			return domain.Unavailable("update likes", err)
		}
		err := tx.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM post_likes WHERE post_id = ?`), postID).Scan(&count)
		if err != nil {
			return domain.Unavailable("count likes", err)
		}
		return nil
	})
	return count, err
}

// AddShare records a share and increments share_count in one transaction.
// The insert only succeeds for the first share by a user, so concurrent
// duplicates cannot increment twice.
func (r *Repository) AddShare(ctx context.Context, postID, userID string) (int, error) {
	var count int
	err := r.inTx(ctx, "add share", func(tx *sql.Tx) error {
		if err := r.requirePost(ctx, tx, postID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO post_shares (post_id, user_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (post_id, user_id) DO NOTHING`),
			postID, userID, r.now().UnixMicro(),
		)
		if err != nil {
			return domain.Unavailable("insert share", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrAlreadyShared
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`UPDATE posts SET share_count = share_count + 1 WHERE id = ?`), postID); err != nil {
			return domain.Unavailable("increment share count", err)
		}
		err = tx.QueryRowContext(ctx, r.rebind(`SELECT share_count FROM posts WHERE id = ?`), postID).Scan(&count)
		if err != nil {
			return domain.Unavailable("read share count", err)
		}
		return nil
	})
	return count, err
}

// UploadedMedia returns the distinct media references of non-embed posts.
func (r *Repository) UploadedMedia(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT DISTINCT media_ref FROM posts
		WHERE is_external = ? AND media_ref <> ''`), false)
	if err != nil {
		return nil, domain.Unavailable("list media references", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, domain.Unavailable("scan media reference", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("list media references", err)
	}
	return refs, nil
}

// GetUser returns the user record and its full ledger in append order.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.UserRecord, error) {
	u := &domain.UserRecord{ID: id}
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT role, videos_count, lost_videos FROM users WHERE id = ?`), id,
	).Scan(&u.Role, &u.VideosCount, &u.LostVideos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Unavailable("get user", err)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT created_at, delta, reason FROM score_ledger
		WHERE user_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, domain.Unavailable("query ledger", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			micros int64
			e      domain.ScoreLedgerEntry
		)
		if err := rows.Scan(&micros, &e.Delta, &e.Reason); err != nil {
			return nil, domain.Unavailable("scan ledger entry", err)
		}
		e.Timestamp = time.UnixMicro(micros).UTC()
		u.Ledger = append(u.Ledger, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("iterate ledger", err)
	}
	return u, nil
}

// SetRole upserts the user's role.
func (r *Repository) SetRole(ctx context.Context, id, role string) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO users (id, role) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET role = excluded.role`), id, role)
	if err != nil {
		return domain.Unavailable("set role", err)
	}
	return nil
}

// RecordPostCreated increments videos_count and appends a ledger entry.
func (r *Repository) RecordPostCreated(ctx context.Context, userID string, entry domain.ScoreLedgerEntry) error {
	return r.recordScore(ctx, userID, "videos_count", entry)
}

// RecordPostRemoved increments lost_videos and appends a ledger entry.
func (r *Repository) RecordPostRemoved(ctx context.Context, userID string, entry domain.ScoreLedgerEntry) error {
	return r.recordScore(ctx, userID, "lost_videos", entry)
}

// recordScore bumps counter (a fixed column name, never user input) and
// appends entry atomically.
func (r *Repository) recordScore(ctx context.Context, userID, counter string, entry domain.ScoreLedgerEntry) error {
	return r.inTx(ctx, "record score", func(tx *sql.Tx) error {
		upsert := fmt.Sprintf(`
			INSERT INTO users (id, %[1]s) VALUES (?, 1)
			ON CONFLICT (id) DO UPDATE SET %[1]s = users.%[1]s + 1`, counter)
		if _, err := tx.ExecContext(ctx, r.rebind(upsert), userID); err != nil {
			return domain.Unavailable("update "+counter, err)
		}
		_, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO score_ledger (user_id, created_at, delta, reason) VALUES (?, ?, ?, ?)`),
			userID, entry.Timestamp.UnixMicro(), entry.Delta, entry.Reason,
		)
		if err != nil {
			return domain.Unavailable("append ledger entry", err)
		}
		return nil
	})
}

func (r *Repository) requirePost(ctx context.Context, tx *sql.Tx, postID string) error {
	var n int
	err := tx.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM posts WHERE id = ?`), postID).Scan(&n)
	if err != nil {
		return domain.Unavailable("check post", err)
	}
	if n == 0 {
		return fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}
	return nil
}

// loadSets fills LikedBy and SharedBy for posts with two queries.
func (r *Repository) loadSets(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	index := make(map[string]*domain.Post, len(posts))
	ids := make([]any, len(posts))
	for i := range posts {
		index[posts[i].ID] = &posts[i]
		ids[i] = posts[i].ID
	}
	in := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	load := func(table string, add func(p *domain.Post, userID string)) error {
		query := fmt.Sprintf(`SELECT post_id, user_id FROM %s WHERE post_id IN (%s) ORDER BY post_id, user_id`, table, in)
		rows, err := r.db.QueryContext(ctx, r.rebind(query), ids...)
		if err != nil {
			return domain.Unavailable("query "+table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var postID, userID string
			if err := rows.Scan(&postID, &userID); err != nil {
				return domain.Unavailable("scan "+table, err)
			}
			if p, ok := index[postID]; ok {
				add(p, userID)
			}
		}
		if err := rows.Err(); err != nil {
			return domain.Unavailable("iterate "+table, err)
		}
		return nil
	}

	if err := load("post_likes", func(p *domain.Post, u string) { p.LikedBy = append(p.LikedBy, u) }); err != nil {
		return err
	}
	return load("post_shares", func(p *domain.Post, u string) { p.SharedBy = append(p.SharedBy, u) })
}

func (r *Repository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable(op+": begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(op+": commit transaction", err)
	}
	return nil
}

// rebind rewrites '?' placeholders to $N for Postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		p      domain.Post
		micros int64
	)
	err := row.Scan(
		&p.ID,
		&p.AuthorID,
		&p.Title,
		&p.Description,
		&p.MediaReference,
		&p.IsExternalEmbed,
		&micros,
		&p.ShareCount,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMicro(micros).UTC()
	return &p, nil
}
