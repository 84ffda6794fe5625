// Package notices is the announcements board: paginated public listing,
// authenticated create, and owner-only update and delete.
package notices

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPageTake = 20
	maxPageTake     = 100
	maxTitleRunes   = 200
	maxBodyRunes    = 10000
)

var (
	ErrNotFound      = errors.New("notice not found")
	ErrForbidden     = errors.New("not the author of this notice")
	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title is too long")
	ErrBodyRequired  = errors.New("body is required")
	ErrBodyTooLong   = errors.New("body is too long")
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

type Notice struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListResult struct {
	Notices []Notice `json:"notices"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Take    int      `json:"take"`
}

func normalizePage(page, take int) (int, int) {
	if page < 1 {
		page = 1
	}
	if take <= 0 {
		take = defaultPageTake
	}
	if take > maxPageTake {
		take = maxPageTake
	}
	return page, take
}

func validate(title, body string) (string, string, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return "", "", ErrTitleRequired
	}
	if len([]rune(title)) > maxTitleRunes {
		return "", "", ErrTitleTooLong
	}
	if body == "" {
		return "", "", ErrBodyRequired
	}
	if len([]rune(body)) > maxBodyRunes {
		return "", "", ErrBodyTooLong
	}
	return title, body, nil
}

func (s *Service) List(ctx context.Context, page, take int) (ListResult, error) {
	page, take = normalizePage(page, take)
	var total int
	if err := s.pool.QueryRow(ctx, "select count(*) from notices").Scan(&total); err != nil {
		return ListResult{}, err
	}
	rows, err := s.pool.Query(ctx, `
		select id, author_id, title, body, created_at, updated_at
		from notices
		order by created_at desc
		limit $1 offset $2
	`, take, (page-1)*take)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()
	notices := make([]Notice, 0, take)
	for rows.Next() {
		var n Notice
		if err := rows.Scan(&n.ID, &n.AuthorID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return ListResult{}, err
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return ListResult{Notices: notices, Total: total, Page: page, Take: take}, nil
}

func (s *Service) Get(ctx context.Context, id string) (Notice, error) {
	var n Notice
	err := s.pool.QueryRow(ctx, `
		select id, author_id, title, body, created_at, updated_at
		from notices
		where id = $1
	`, id).Scan(&n.ID, &n.AuthorID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notice{}, ErrNotFound
	}
	return n, err
}

func (s *Service) Create(ctx context.Context, authorID, title, body string) (Notice, error) {
	title, body, err := validate(title, body)
	if err != nil {
		return Notice{}, err
	}
	var n Notice
	err = s.pool.QueryRow(ctx, `
		insert into notices (author_id, title, body)
		values ($1, $2, $3)
		returning id, author_id, title, body, created_at, updated_at
	`, authorID, title, body).Scan(&n.ID, &n.AuthorID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (s *Service) Update(ctx context.Context, authorID, id, title, body string) (Notice, error) {
	title, body, err := validate(title, body)
	if err != nil {
		return Notice{}, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	if existing.AuthorID != authorID {
		return Notice{}, ErrForbidden
	}
	var n Notice
	err = s.pool.QueryRow(ctx, `
		update notices
		set title = $1, body = $2, updated_at = now()
		where id = $3 and author_id = $4
		returning id, author_id, title, body, created_at, updated_at
	`, title, body, id, authorID).Scan(&n.ID, &n.AuthorID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notice{}, ErrNotFound
	}
	return n, err
}

func (s *Service) Delete(ctx context.Context, authorID, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.AuthorID != authorID {
		return ErrForbidden
	}
	tag, err := s.pool.Exec(ctx, "delete from notices where id = $1 and author_id = $2", id, authorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
