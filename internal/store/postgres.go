package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/model"
)

// pgUniqueViolation is the Postgres error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// Schema contains the DDL for the Postgres stores. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         TEXT PRIMARY KEY,
    username   TEXT NOT NULL UNIQUE,
    password   TEXT NOT NULL,
    role       TEXT NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS account_tokens (
    account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    token      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS account_tokens_account_id_idx ON account_tokens(account_id);

CREATE TABLE IF NOT EXISTS todos (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL REFERENCES accounts(id),
    title       TEXT NOT NULL,
    description TEXT NOT NULL,
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS posts (
    id         TEXT PRIMARY KEY,
    author_id  TEXT NOT NULL REFERENCES accounts(id),
    text       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS post_comments (
    id         BIGSERIAL PRIMARY KEY,
    post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    author_id  TEXT NOT NULL,
    text       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS post_comments_post_id_idx ON post_comments(post_id);
`

// EnsureSchema applies the schema to the database.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// PostgresStores bundles Postgres implementations of every store contract.
type PostgresStores struct {
	Accounts *PostgresAccountStore
	Todos    *PostgresTodoStore
	Posts    *PostgresPostStore
}

// NewPostgresStores creates the Postgres store bundle over an open handle.
func NewPostgresStores(db *sql.DB) *PostgresStores {
	return &PostgresStores{
		Accounts: &PostgresAccountStore{db: db},
		Todos:    &PostgresTodoStore{db: db},
		Posts:    &PostgresPostStore{db: db},
	}
}

// isUniqueViolation reports whether the error is a unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// PostgresAccountStore implements AccountStore over Postgres.
type PostgresAccountStore struct {
	db *sql.DB
}

// FindByUsername implements AccountStore.
func (s *PostgresAccountStore) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, role, created_at FROM accounts WHERE username = $1`,
		username)
	return s.scanAccount(ctx, row)
}

// FindByIDAndToken implements AccountStore.
func (s *PostgresAccountStore) FindByIDAndToken(ctx context.Context, id, token string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.username, a.password, a.role, a.created_at
		 FROM accounts a
		 JOIN account_tokens t ON t.account_id = a.id
		 WHERE a.id = $1 AND t.token = $2
		 LIMIT 1`,
		id, token)
	return s.scanAccount(ctx, row)
}

// scanAccount scans one account row and loads its token list.
func (s *PostgresAccountStore) scanAccount(ctx context.Context, row *sql.Row) (*model.Account, error) {
	var account model.Account
	err := row.Scan(&account.ID, &account.Username, &account.Password, &account.Role, &account.Created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT token FROM account_tokens WHERE account_id = $1 ORDER BY created_at`,
		account.ID)
	if err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		account.Tokens = append(account.Tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &account, nil
}

// Create implements AccountStore.
func (s *PostgresAccountStore) Create(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Created.IsZero() {
		account.Created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, password, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Username, account.Password, account.Role, account.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// AppendToken implements AccountStore.
func (s *PostgresAccountStore) AppendToken(ctx context.Context, accountID, token string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO account_tokens (account_id, token)
		 SELECT id, $2 FROM accounts WHERE id = $1`,
		accountID, token)
	if err != nil {
		return fmt.Errorf("appending token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresTodoStore implements TodoStore over Postgres.
type PostgresTodoStore struct {
	db *sql.DB
}

const todoColumns = `id, owner_id, title, description, completed, created_at, updated_at`

// FindByID implements TodoStore.
func (s *PostgresTodoStore) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1`, id)
	return scanTodo(row)
}

// FindFiltered implements TodoStore.
func (s *PostgresTodoStore) FindFiltered(ctx context.Context, filter TodoFilter, offset, limit int) ([]model.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		ORDER BY created_at
		OFFSET $3 LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, filter.OwnerID, filter.Search, offset, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		var todo model.Todo
		if err := rows.Scan(&todo.ID, &todo.OwnerID, &todo.Title, &todo.Description,
			&todo.Completed, &todo.Created, &todo.Updated); err != nil {
			return nil, fmt.Errorf("scanning todo: %w", err)
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

// Create implements TodoStore.
func (s *PostgresTodoStore) Create(ctx context.Context, todo *model.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if todo.Created.IsZero() {
		todo.Created = now
	}
	todo.Updated = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (id, owner_id, title, description, completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		todo.ID, todo.OwnerID, todo.Title, todo.Description, todo.Completed, todo.Created, todo.Updated)
	if err != nil {
		return fmt.Errorf("inserting todo: %w", err)
	}
	return nil
}

// UpdateScoped implements TodoStore. The WHERE clause carries the
// ownership condition, so a non-owner's attempt matches zero rows.
func (s *PostgresTodoStore) UpdateScoped(ctx context.Context, scope authz.Scope, patch TodoPatch) (*model.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE todos SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			completed = COALESCE($5, completed),
			updated_at = now()
		 WHERE id = $1 AND ($2 = '' OR owner_id = $2)
		 RETURNING `+todoColumns,
		scope.ID, scope.OwnerID, patch.Title, patch.Description, patch.Completed)
	return scanTodo(row)
}

// DeleteScoped implements TodoStore.
func (s *PostgresTodoStore) DeleteScoped(ctx context.Context, scope authz.Scope) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND ($2 = '' OR owner_id = $2)`,
		scope.ID, scope.OwnerID)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanTodo scans one todo row.
func scanTodo(row *sql.Row) (*model.Todo, error) {
	var todo model.Todo
	err := row.Scan(&todo.ID, &todo.OwnerID, &todo.Title, &todo.Description,
		&todo.Completed, &todo.Created, &todo.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning todo: %w", err)
	}
	return &todo, nil
}

// PostgresPostStore implements PostStore over Postgres.
type PostgresPostStore struct {
	db *sql.DB
}

const postColumns = `id, author_id, text, created_at, updated_at`

// FindByID implements PostStore.
func (s *PostgresPostStore) FindByID(ctx context.Context, id string) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadComments(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// FindFiltered implements PostStore.
func (s *PostgresPostStore) FindFiltered(ctx context.Context, filter PostFilter, offset, limit int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE ($1 = '' OR text ILIKE '%' || $1 || '%')
		 ORDER BY created_at
		 OFFSET $2 LIMIT $3`,
		filter.Search, offset, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		var post model.Post
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Text, &post.Created, &post.Updated); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		post.Comments = []model.Comment{}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		if err := s.loadComments(ctx, &posts[i]); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// Create implements PostStore.
func (s *PostgresPostStore) Create(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if post.Created.IsZero() {
		post.Created = now
	}
	post.Updated = now
	if post.Comments == nil {
		post.Comments = []model.Comment{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.AuthorID, post.Text, post.Created, post.Updated)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// UpdateScoped implements PostStore.
func (s *PostgresPostStore) UpdateScoped(ctx context.Context, scope authz.Scope, patch PostPatch) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE posts SET
			text = COALESCE($3, text),
			updated_at = now()
		 WHERE id = $1 AND ($2 = '' OR author_id = $2)
		 RETURNING `+postColumns,
		scope.ID, scope.OwnerID, patch.Text)
	post, err := scanPost(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadComments(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeleteScoped implements PostStore.
func (s *PostgresPostStore) DeleteScoped(ctx context.Context, scope authz.Scope) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1 AND ($2 = '' OR author_id = $2)`,
		scope.ID, scope.OwnerID)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendComment implements PostStore.
func (s *PostgresPostStore) AppendComment(ctx context.Context, postID string, comment model.Comment) (*model.Post, error) {
	if comment.Created.IsZero() {
		comment.Created = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO post_comments (post_id, author_id, text, created_at)
		 SELECT id, $2, $3, $4 FROM posts WHERE id = $1`,
		postID, comment.AuthorID, comment.Text, comment.Created)
	if err != nil {
		return nil, fmt.Errorf("appending comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.FindByID(ctx, postID)
}

// loadComments loads the post's comments in creation order.
func (s *PostgresPostStore) loadComments(ctx context.Context, post *model.Post) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT author_id, text, created_at FROM post_comments WHERE post_id = $1 ORDER BY created_at`,
		post.ID)
	if err != nil {
		return fmt.Errorf("loading comments: %w", err)
	}
	defer rows.Close()

	post.Comments = []model.Comment{}
	for rows.Next() {
		var comment model.Comment
		if err := rows.Scan(&comment.AuthorID, &comment.Text, &comment.Created); err != nil {
			return fmt.Errorf("scanning comment: %w", err)
		}
		post.Comments = append(post.Comments, comment)
	}
	return rows.Err()
}

// scanPost scans one post row.
func scanPost(row *sql.Row) (*model.Post, error) {
	var post model.Post
	err := row.Scan(&post.ID, &post.AuthorID, &post.Text, &post.Created, &post.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning post: %w", err)
	}
	return &post, nil
}

// normalizeLimit clamps a non-positive limit to the listing default.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}
