package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS posts (
	id            TEXT PRIMARY KEY,
	author_id     TEXT NOT NULL,
	author_handle TEXT NOT NULL,
	author_avatar TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comments (
	seq              BIGSERIAL,
	id               TEXT PRIMARY KEY,
	post_id          TEXT NOT NULL REFERENCES posts(id),
	parent_id        TEXT REFERENCES comments(id),
	root_id          TEXT NOT NULL,
	depth            SMALLINT NOT NULL,
	author_id        TEXT NOT NULL,
	author_handle    TEXT NOT NULL,
	author_avatar    TEXT NOT NULL DEFAULT '',
	body             TEXT NOT NULL,
	attachment_url   TEXT,
	attachment_type  TEXT,
	likes            INT NOT NULL DEFAULT 0,
	dislikes         INT NOT NULL DEFAULT 0,
	reply_count      INT NOT NULL DEFAULT 0,
	descendant_count INT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ,
	deleted_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS comments_listing_idx ON comments (post_id, parent_id, seq) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS comment_reactions (
	comment_id TEXT NOT NULL REFERENCES comments(id),
	user_id    TEXT NOT NULL,
	reaction   SMALLINT NOT NULL,
	PRIMARY KEY (comment_id, user_id)
);
`

const commentColumns = `c.id, c.post_id, c.parent_id, c.root_id, c.depth, c.author_id, c.author_handle,
	c.author_avatar, c.body, c.attachment_url, c.attachment_type, c.likes, c.dislikes,
	c.reply_count, c.descendant_count, c.created_at, c.updated_at, c.deleted_at,
	COALESCE(r.reaction, 0)`

const commentFrom = `FROM comments c
	LEFT JOIN comment_reactions r ON r.comment_id = c.id AND r.user_id = $1`

// PostgresStore persists posts and comments in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePost(ctx context.Context, p Post) (Post, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	const q = `INSERT INTO posts (id, author_id, author_handle, author_avatar, body)
	           VALUES ($1, $2, $3, $4, $5)
	           RETURNING created_at`
	if err := s.pool.QueryRow(ctx, q, p.ID, p.AuthorID, p.AuthorHandle, p.AuthorAvatar, p.Text).Scan(&p.CreatedAt); err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	const q = `SELECT id, author_id, author_handle, author_avatar, body, created_at FROM posts WHERE id = $1`
	var p Post
	err := s.pool.QueryRow(ctx, q, postID).Scan(&p.ID, &p.AuthorID, &p.AuthorHandle, &p.AuthorAvatar, &p.Text, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrPostNotFound
	}
	return p, err
}

func (s *PostgresStore) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	if strings.TrimSpace(c.Text) == "" && c.Attachment == nil {
		return Comment{}, ErrEmptyComment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, c.PostID).Scan(&exists); err != nil {
		return Comment{}, err
	}
	if !exists {
		return Comment{}, ErrPostNotFound
	}

	c.ID = uuid.New().String()
	c.Depth, c.RootID = 0, c.ID
	if c.ParentID != "" {
		parent, err := lockComment(ctx, tx, c.ParentID)
		if errors.Is(err, ErrNotFound) {
			return Comment{}, ErrParentNotFound
		}
		if err != nil {
			return Comment{}, err
		}
		if parent.PostID != c.PostID {
			return Comment{}, ErrParentMismatch
		}
		c.ParentID, c.RootID, c.Depth = placeUnder(parent)
	}

	var attURL, attType *string
	if c.Attachment != nil {
		attURL, attType = &c.Attachment.URL, &c.Attachment.Type
	}
	const ins = `INSERT INTO comments (id, post_id, parent_id, root_id, depth, author_id, author_handle, author_avatar, body, attachment_url, attachment_type)
	             VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)
	             RETURNING created_at`
	if err := tx.QueryRow(ctx, ins, c.ID, c.PostID, c.ParentID, c.RootID, c.Depth,
		c.AuthorID, c.AuthorHandle, c.AuthorAvatar, c.Text, attURL, attType).Scan(&c.CreatedAt); err != nil {
		return Comment{}, err
	}

	if c.ParentID != "" {
		if _, err := tx.Exec(ctx, `UPDATE comments SET reply_count = reply_count + 1 WHERE id = $1`, c.ParentID); err != nil {
			return Comment{}, err
		}
		if _, err := tx.Exec(ctx, `UPDATE comments SET descendant_count = descendant_count + 1 WHERE id = $1`, c.RootID); err != nil {
			return Comment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Comment{}, err
	}
	c.Likes, c.Dislikes, c.ReplyCount, c.DescendantCount, c.UserReaction = 0, 0, 0, 0, 0
	c.UpdatedAt, c.DeletedAt = nil, nil
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, p ListParams) ([]Comment, error) {
	p = p.Normalize()
	if _, err := s.GetPost(ctx, p.PostID); err != nil {
		return nil, err
	}
	if p.ParentID != "" {
		parent, err := s.GetComment(ctx, p.ParentID, "")
		if errors.Is(err, ErrNotFound) || (err == nil && parent.PostID != p.PostID) {
			return nil, ErrParentNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	order := "DESC"
	if p.Order == OrderAsc {
		order = "ASC"
	}
	q := `SELECT ` + commentColumns + ` ` + commentFrom + `
	      WHERE c.post_id = $2 AND c.parent_id IS NOT DISTINCT FROM NULLIF($3, '') AND c.deleted_at IS NULL
	      ORDER BY c.seq ` + order + `
	      LIMIT $4 OFFSET $5`
	rows, err := s.pool.Query(ctx, q, p.ViewerID, p.PostID, p.ParentID, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountComments(ctx context.Context, postID string) (int, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return 0, err
	}
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM comments WHERE post_id = $1 AND deleted_at IS NULL`, postID).Scan(&n)
	return n, err
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID, viewerID string) (Comment, error) {
	q := `SELECT ` + commentColumns + ` ` + commentFrom + ` WHERE c.id = $2 AND c.deleted_at IS NULL`
	c, err := scanComment(s.pool.QueryRow(ctx, q, viewerID, commentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, userID string, u CommentUpdate) (Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := lockOwned(ctx, tx, commentID, userID)
	if err != nil {
		return Comment{}, err
	}
	if !c.Pristine() {
		return Comment{}, ErrNotEditable
	}
	switch {
	case u.Attachment != nil:
		a := *u.Attachment
		c.Attachment = &a
	case u.RemoveAttachment:
		c.Attachment = nil
	}
	if strings.TrimSpace(u.Text) == "" && c.Attachment == nil {
		return Comment{}, ErrEmptyComment
	}
	c.Text = u.Text

	var attURL, attType *string
	if c.Attachment != nil {
		attURL, attType = &c.Attachment.URL, &c.Attachment.Type
	}
	var updated time.Time
	const q = `UPDATE comments SET body = $1, attachment_url = $2, attachment_type = $3, updated_at = now()
	           WHERE id = $4 RETURNING updated_at`
	if err := tx.QueryRow(ctx, q, c.Text, attURL, attType, commentID).Scan(&updated); err != nil {
		return Comment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Comment{}, err
	}
	c.UpdatedAt = &updated
	return c, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID, userID string) (Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := lockOwned(ctx, tx, commentID, userID)
	if err != nil {
		return Comment{}, err
	}

	const q = `WITH RECURSIVE subtree AS (
	               SELECT id FROM comments WHERE id = $1
	               UNION ALL
	               SELECT ch.id FROM comments ch JOIN subtree st ON ch.parent_id = st.id
	               WHERE ch.deleted_at IS NULL
	           )
	           UPDATE comments SET deleted_at = now()
	           WHERE id IN (SELECT id FROM subtree) AND deleted_at IS NULL`
	tag, err := tx.Exec(ctx, q, commentID)
	if err != nil {
		return Comment{}, err
	}
	removed := int(tag.RowsAffected())

	if c.ParentID != "" {
		if _, err := tx.Exec(ctx, `UPDATE comments SET reply_count = GREATEST(reply_count - 1, 0) WHERE id = $1`, c.ParentID); err != nil {
			return Comment{}, err
		}
		if _, err := tx.Exec(ctx, `UPDATE comments SET descendant_count = GREATEST(descendant_count - $1, 0) WHERE id = $2`, removed, c.RootID); err != nil {
			return Comment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Comment{}, err
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	return c, nil
}

func (s *PostgresStore) React(ctx context.Context, commentID, userID string, dislike, del bool) (Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := lockComment(ctx, tx, commentID); err != nil {
		return Comment{}, err
	}

	var cur int8
	err = tx.QueryRow(ctx,
		`SELECT reaction FROM comment_reactions WHERE comment_id = $1 AND user_id = $2`,
		commentID, userID).Scan(&cur)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, err
	}

	dl, dd, next, err := reactionDelta(cur, dislike, del)
	if err != nil {
		return Comment{}, err
	}
	if next == 0 {
		_, err = tx.Exec(ctx, `DELETE FROM comment_reactions WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
	} else {
		_, err = tx.Exec(ctx,
			`INSERT INTO comment_reactions (comment_id, user_id, reaction) VALUES ($1, $2, $3)
			 ON CONFLICT (comment_id, user_id) DO UPDATE SET reaction = EXCLUDED.reaction`,
			commentID, userID, next)
	}
	if err != nil {
		return Comment{}, err
	}
	if dl != 0 || dd != 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE comments SET likes = likes + $1, dislikes = dislikes + $2 WHERE id = $3`,
			dl, dd, commentID); err != nil {
			return Comment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Comment{}, err
	}
	return s.GetComment(ctx, commentID, userID)
}

func lockComment(ctx context.Context, tx pgx.Tx, commentID string) (Comment, error) {
	q := `SELECT ` + commentColumns + ` ` + commentFrom + ` WHERE c.id = $2 AND c.deleted_at IS NULL FOR UPDATE OF c`
	c, err := scanComment(tx.QueryRow(ctx, q, "", commentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	return c, err
}

func lockOwned(ctx context.Context, tx pgx.Tx, commentID, userID string) (Comment, error) {
	c, err := lockComment(ctx, tx, commentID)
	if err != nil {
		return Comment{}, err
	}
	if c.AuthorID != userID {
		return Comment{}, ErrForbidden
	}
	return c, nil
}

func scanComment(row pgx.Row) (Comment, error) {
	var (
		c               Comment
		parentID        *string
		attURL, attType *string
		depth           int16
		reaction        int16
	)
	err := row.Scan(&c.ID, &c.PostID, &parentID, &c.RootID, &depth, &c.AuthorID, &c.AuthorHandle,
		&c.AuthorAvatar, &c.Text, &attURL, &attType, &c.Likes, &c.Dislikes,
		&c.ReplyCount, &c.DescendantCount, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt, &reaction)
	if err != nil {
		return Comment{}, err
	}
	if parentID != nil {
		c.ParentID = *parentID
	}
	if attURL != nil && *attURL != "" {
		c.Attachment = &Attachment{URL: *attURL}
		if attType != nil {
			c.Attachment.Type = *attType
		}
	}
	c.Depth = int(depth)
	c.UserReaction = int8(reaction)
	return c, nil
}
