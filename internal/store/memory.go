package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/model"
)

// MemoryStores bundles in-memory implementations of every store contract.
// Each store serializes its operations with a mutex, so individual writes
// are atomic per record the way an external document store applies them.
type MemoryStores struct {
	Accounts *MemoryAccountStore
	Todos    *MemoryTodoStore
	Posts    *MemoryPostStore
}

// NewMemoryStores creates the in-memory store bundle.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		Accounts: NewMemoryAccountStore(),
		Todos:    NewMemoryTodoStore(),
		Posts:    NewMemoryPostStore(),
	}
}

// MemoryAccountStore implements AccountStore in process memory.
type MemoryAccountStore struct {
	mu         sync.RWMutex
	byID       map[string]*model.Account
	byUsername map[string]string
}

// NewMemoryAccountStore creates an empty account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		byID:       make(map[string]*model.Account),
		byUsername: make(map[string]string),
	}
}

// FindByUsername implements AccountStore.
func (s *MemoryAccountStore) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

// FindByIDAndToken implements AccountStore.
func (s *MemoryAccountStore) FindByIDAndToken(ctx context.Context, id, token string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, t := range account.Tokens {
		if t == token {
			return cloneAccount(account), nil
		}
	}
	return nil, ErrNotFound
}

// Create implements AccountStore.
func (s *MemoryAccountStore) Create(ctx context.Context, account *model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[account.Username]; taken {
		return ErrDuplicateUsername
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Created.IsZero() {
		account.Created = time.Now().UTC()
	}

	s.byID[account.ID] = cloneAccount(account)
	s.byUsername[account.Username] = account.ID
	return nil
}

// AppendToken implements AccountStore.
func (s *MemoryAccountStore) AppendToken(ctx context.Context, accountID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[accountID]
	if !ok {
		return ErrNotFound
	}
	account.Tokens = append(account.Tokens, token)
	return nil
}

// MemoryTodoStore implements TodoStore in process memory.
type MemoryTodoStore struct {
	mu    sync.RWMutex
	todos map[string]*model.Todo
}

// NewMemoryTodoStore creates an empty todo store.
func NewMemoryTodoStore() *MemoryTodoStore {
	return &MemoryTodoStore{todos: make(map[string]*model.Todo)}
}

// FindByID implements TodoStore.
func (s *MemoryTodoStore) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	todo, ok := s.todos[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *todo
	return &clone, nil
}

// FindFiltered implements TodoStore.
func (s *MemoryTodoStore) FindFiltered(ctx context.Context, filter TodoFilter, offset, limit int) ([]model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.Todo, 0)
	for _, todo := range s.todos {
		if filter.OwnerID != "" && todo.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Search != "" && !containsFold(todo.Title, filter.Search) &&
			!containsFold(todo.Description, filter.Search) {
			continue
		}
		matched = append(matched, *todo)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Created.Before(matched[j].Created)
	})

	return paginate(matched, offset, limit), nil
}

// Create implements TodoStore.
func (s *MemoryTodoStore) Create(ctx context.Context, todo *model.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if todo.ID == "" {
		todo.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if todo.Created.IsZero() {
		todo.Created = now
	}
	todo.Updated = now

	clone := *todo
	s.todos[todo.ID] = &clone
	return nil
}

// UpdateScoped implements TodoStore.
func (s *MemoryTodoStore) UpdateScoped(ctx context.Context, scope authz.Scope, patch TodoPatch) (*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todo, ok := s.todos[scope.ID]
	if !ok || (scope.OwnerID != "" && todo.OwnerID != scope.OwnerID) {
		return nil, ErrNotFound
	}

	if patch.Title != nil {
		todo.Title = *patch.Title
	}
	if patch.Description != nil {
		todo.Description = *patch.Description
	}
	if patch.Completed != nil {
		todo.Completed = *patch.Completed
	}
	todo.Updated = time.Now().UTC()

	clone := *todo
	return &clone, nil
}

// DeleteScoped implements TodoStore.
func (s *MemoryTodoStore) DeleteScoped(ctx context.Context, scope authz.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todo, ok := s.todos[scope.ID]
	if !ok || (scope.OwnerID != "" && todo.OwnerID != scope.OwnerID) {
		return ErrNotFound
	}
	delete(s.todos, scope.ID)
	return nil
}

// MemoryPostStore implements PostStore in process memory.
type MemoryPostStore struct {
	mu    sync.RWMutex
	posts map[string]*model.Post
}

// NewMemoryPostStore creates an empty post store.
func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{posts: make(map[string]*model.Post)}
}

// FindByID implements PostStore.
func (s *MemoryPostStore) FindByID(ctx context.Context, id string) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(post), nil
}

// FindFiltered implements PostStore.
func (s *MemoryPostStore) FindFiltered(ctx context.Context, filter PostFilter, offset, limit int) ([]model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.Post, 0)
	for _, post := range s.posts {
		if filter.Search != "" && !containsFold(post.Text, filter.Search) {
			continue
		}
		matched = append(matched, *clonePost(post))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Created.Before(matched[j].Created)
	})

	return paginate(matched, offset, limit), nil
}

// Create implements PostStore.
func (s *MemoryPostStore) Create(ctx context.Context, post *model.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.posts[post.ID] = clonePost(post)
	return nil
}

// UpdateScoped implements PostStore.
func (s *MemoryPostStore) UpdateScoped(ctx context.Context, scope authz.Scope, patch PostPatch) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[scope.ID]
	if !ok || (scope.OwnerID != "" && post.AuthorID != scope.OwnerID) {
		return nil, ErrNotFound
	}

	if patch.Text != nil {
		post.Text = *patch.Text
	}
	post.Updated = time.Now().UTC()

	return clonePost(post), nil
}

// DeleteScoped implements PostStore.
func (s *MemoryPostStore) DeleteScoped(ctx context.Context, scope authz.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[scope.ID]
	if !ok || (scope.OwnerID != "" && post.AuthorID != scope.OwnerID) {
		return ErrNotFound
	}
	delete(s.posts, scope.ID)
	return nil
}

// AppendComment implements PostStore.
func (s *MemoryPostStore) AppendComment(ctx context.Context, postID string, comment model.Comment) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}
	if comment.Created.IsZero() {
		comment.Created = time.Now().UTC()
	}
	post.Comments = append(post.Comments, comment)
	post.Updated = time.Now().UTC()

	return clonePost(post), nil
}

// cloneAccount deep-copies an account so callers never share store memory.
func cloneAccount(a *model.Account) *model.Account {
	clone := *a
	clone.Tokens = append([]string(nil), a.Tokens...)
	return &clone
}

// clonePost deep-copies a post including its comments.
func clonePost(p *model.Post) *model.Post {
	clone := *p
	clone.Comments = append([]model.Comment(nil), p.Comments...)
	return &clone
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// paginate applies offset and limit to a sorted slice.
func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
