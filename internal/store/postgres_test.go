package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/model"
)

func newMockStores(t *testing.T) (*PostgresStores, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewPostgresStores(db), mock
}

var accountColumns = []string{"id", "username", "password", "role", "created_at"}

func TestPostgresAccountStore_FindByUsername(t *testing.T) {
	stores, mock := newMockStores(t)
	created := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, username, password, role, created_at FROM accounts WHERE username`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("acc-1", "alice", "digest", "user", created))
	mock.ExpectQuery(`SELECT token FROM account_tokens WHERE account_id`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("tok-1").AddRow("tok-2"))

	account, err := stores.Accounts.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", account.ID)
	assert.Equal(t, model.RoleUser, account.Role)
	assert.Equal(t, []string{"tok-1", "tok-2"}, account.Tokens)
}

func TestPostgresAccountStore_FindByUsername_NotFound(t *testing.T) {
	stores, mock := newMockStores(t)

	mock.ExpectQuery(`SELECT id, username, password, role, created_at FROM accounts WHERE username`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := stores.Accounts.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresAccountStore_FindByIDAndToken_Unlisted(t *testing.T) {
	stores, mock := newMockStores(t)

	// The JOIN against account_tokens matches nothing for an unlisted token.
	mock.ExpectQuery(`JOIN account_tokens`).
		WithArgs("acc-1", "tok-x").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := stores.Accounts.FindByIDAndToken(context.Background(), "acc-1", "tok-x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresAccountStore_Create_Duplicate(t *testing.T) {
	stores, mock := newMockStores(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := stores.Accounts.Create(context.Background(), &model.Account{Username: "alice"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestPostgresAccountStore_AppendToken_MissingAccount(t *testing.T) {
	stores, mock := newMockStores(t)

	mock.ExpectExec(`INSERT INTO account_tokens`).
		WithArgs("ghost", "tok-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := stores.Accounts.AppendToken(context.Background(), "ghost", "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

var todoColumnNames = []string{"id", "owner_id", "title", "description", "completed", "created_at", "updated_at"}

func TestPostgresTodoStore_UpdateScoped(t *testing.T) {
	stores, mock := newMockStores(t)
	now := time.Now().UTC()
	title := "new title"

	mock.ExpectQuery(`UPDATE todos SET`).
		WithArgs("t1", "user-1", title, nil, nil).
		WillReturnRows(sqlmock.NewRows(todoColumnNames).
			AddRow("t1", "user-1", "new title", "desc", false, now, now))

	todo, err := stores.Todos.UpdateScoped(context.Background(),
		authz.Scope{ID: "t1", OwnerID: "user-1"}, TodoPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new title", todo.Title)
}

func TestPostgresTodoStore_UpdateScoped_OwnershipExcludes(t *testing.T) {
	stores, mock := newMockStores(t)
	title := "new title"

	// Zero rows back means the ownership clause excluded the record.
	mock.ExpectQuery(`UPDATE todos SET`).
		WithArgs("t1", "user-2", title, nil, nil).
		WillReturnRows(sqlmock.NewRows(todoColumnNames))

	_, err := stores.Todos.UpdateScoped(context.Background(),
		authz.Scope{ID: "t1", OwnerID: "user-2"}, TodoPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresTodoStore_DeleteScoped_ZeroAffected(t *testing.T) {
	stores, mock := newMockStores(t)

	mock.ExpectExec(`DELETE FROM todos WHERE`).
		WithArgs("t1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := stores.Todos.DeleteScoped(context.Background(), authz.Scope{ID: "t1", OwnerID: "user-2"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresTodoStore_FindFiltered(t *testing.T) {
	stores, mock := newMockStores(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM todos`).
		WithArgs("user-1", "milk", 0, 10).
		WillReturnRows(sqlmock.NewRows(todoColumnNames).
			AddRow("t1", "user-1", "Buy milk", "", false, now, now))

	todos, err := stores.Todos.FindFiltered(context.Background(),
		TodoFilter{OwnerID: "user-1", Search: "milk"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "Buy milk", todos[0].Title)
}

var postColumnNames = []string{"id", "author_id", "text", "created_at", "updated_at"}
var commentColumnNames = []string{"author_id", "text", "created_at"}

func TestPostgresPostStore_FindByID_WithComments(t *testing.T) {
	stores, mock := newMockStores(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM posts WHERE id`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(postColumnNames).
			AddRow("p1", "user-1", "hello", now, now))
	mock.ExpectQuery(`SELECT author_id, text, created_at FROM post_comments`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(commentColumnNames).
			AddRow("user-2", "hi", now))

	post, err := stores.Posts.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "user-2", post.Comments[0].AuthorID)
}

func TestPostgresPostStore_AppendComment_MissingPost(t *testing.T) {
	stores, mock := newMockStores(t)

	mock.ExpectExec(`INSERT INTO post_comments`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := stores.Posts.AppendComment(context.Background(), "ghost",
		model.Comment{AuthorID: "user-1", Text: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresPostStore_DeleteScoped_AdminScope(t *testing.T) {
	stores, mock := newMockStores(t)

	// An admin scope carries an empty owner, so the clause matches any author.
	mock.ExpectExec(`DELETE FROM posts WHERE`).
		WithArgs("p1", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := stores.Posts.DeleteScoped(context.Background(), authz.Scope{ID: "p1"})
	assert.NoError(t, err)
}
