package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/earlybot/core/logger"
)

const columns = `id, platform_user_id, display_name, handle, interests, region,
	is_active, onboarding_complete, created_at, updated_at`

// Filter selects records for Count. Nil fields do not constrain the result.
type Filter struct {
	Active             *bool
	OnboardingComplete *bool
	Region             *Region
}

// Bool returns a pointer to b for use in Filter.
func Bool(b bool) *bool { return &b }

// Store persists subscribers through sqlx. Every write is keyed by the
// platform user id.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
	// lockClause is appended to read-for-update selects; empty on sqlite where
	// the single writer connection already serializes transactions.
	lockClause string
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if db.DriverName() == "postgres" {
		s.lockClause = " FOR UPDATE"
	}
	return s
}

// GetByPlatformID returns the record for id or ErrNotFound.
func (s *Store) GetByPlatformID(ctx context.Context, id int64) (*Subscriber, error) {
	return s.get(ctx, s.db, id, "")
}

func (s *Store) get(ctx context.Context, q sqlx.QueryerContext, id int64, suffix string) (*Subscriber, error) {
	var sub Subscriber
	query := s.db.Rebind(`SELECT ` + columns + ` FROM subscribers WHERE platform_user_id = ?` + suffix)
	if err := sqlx.GetContext(ctx, q, &sub, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscriber %d: %w", id, err)
	}
	if sub.Interests == nil {
		sub.Interests = InterestSet{}
	}
	return &sub, nil
}

// CreateIfAbsent returns the record for p.PlatformUserID, inserting it first
// when missing. Concurrent callers for the same id converge on one row: the
// unique constraint turns the losing insert into a no-op and both read the
// winner's record.
func (s *Store) CreateIfAbsent(ctx context.Context, p Profile) (*Subscriber, error) {
	now := s.now()
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO subscribers (
			platform_user_id, display_name, handle, interests, region,
			is_active, onboarding_complete, created_at, updated_at
		) VALUES (
			:platform_user_id, :display_name, :handle, :interests, :region,
			:is_active, :onboarding_complete, :created_at, :updated_at
		)
		ON CONFLICT (platform_user_id) DO NOTHING`,
		&Subscriber{
			PlatformUserID: p.PlatformUserID,
			DisplayName:    p.DisplayName,
			Handle:         p.Handle,
			Interests:      InterestSet{},
			Region:         RegionAll,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	if err != nil {
		return nil, fmt.Errorf("insert subscriber %d: %w", p.PlatformUserID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info(ctx, "service.subscribers", "subscriber.created",
			slog.String("status", "ok"),
			slog.Int64("platform_user_id", p.PlatformUserID),
		)
	}
	return s.GetByPlatformID(ctx, p.PlatformUserID)
}

// Update applies mutate to the record for id inside a transaction and
// refreshes updated_at. It returns ErrNotFound when no record exists.
// onboarding_complete and is_active are monotonic: a mutator cannot revert
// them.
func (s *Store) Update(ctx context.Context, id int64, mutate func(*Subscriber) error) (*Subscriber, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update %d: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := s.get(ctx, tx, id, s.lockClause)
	if err != nil {
		return nil, err
	}
	next := *cur
	next.Interests = cur.Interests.Clone()
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.PlatformUserID = cur.PlatformUserID
	next.CreatedAt = cur.CreatedAt
	next.OnboardingComplete = next.OnboardingComplete || cur.OnboardingComplete
	next.IsActive = next.IsActive && cur.IsActive
	if next.Interests == nil {
		next.Interests = InterestSet{}
	}
	next.UpdatedAt = s.now()

	query, args, err := tx.BindNamed(`
		UPDATE subscribers SET
			display_name = :display_name,
			handle = :handle,
			interests = :interests,
			region = :region,
			is_active = :is_active,
			onboarding_complete = :onboarding_complete,
			updated_at = :updated_at
		WHERE platform_user_id = :platform_user_id`, &next)
	if err != nil {
		return nil, fmt.Errorf("bind update %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update subscriber %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update %d: %w", id, err)
	}
	return &next, nil
}

// Deactivate flips is_active to false for id with a single statement. It
// reports whether this call performed the transition and returns
// ErrNotFound when the record is gone.
func (s *Store) Deactivate(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE subscribers SET is_active = ?, updated_at = ? WHERE platform_user_id = ? AND is_active = ?`),
		false, s.now(), id, true,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate subscriber %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate subscriber %d: %w", id, err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.GetByPlatformID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// Count returns the number of records matching f in one statement.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Active != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *f.Active)
	}
	if f.OnboardingComplete != nil {
		conds = append(conds, "onboarding_complete = ?")
		args = append(args, *f.OnboardingComplete)
	}
	if f.Region != nil {
		conds = append(conds, "region = ?")
		args = append(args, string(*f.Region))
	}
	query := `SELECT COUNT(*) FROM subscribers`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

// Totals holds figures read together from one statement.
type Totals struct {
	Total  int `db:"total"`
	Active int `db:"active"`
}

// Inactive is derived so that Active+Inactive always equals Total.
func (t Totals) Inactive() int { return t.Total - t.Active }

// Totals counts all and active records in a single statement.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	query := `SELECT COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active
		FROM subscribers`
	if err := s.db.GetContext(ctx, &t, query); err != nil {
		return Totals{}, fmt.Errorf("count totals: %w", err)
	}
	return t, nil
}

// RegionCounts groups all records by region.
func (s *Store) RegionCounts(ctx context.Context) (map[Region]int, error) {
	var rows []struct {
		Region Region `db:"region"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT region, COUNT(*) AS n FROM subscribers GROUP BY region`); err != nil {
		return nil, fmt.Errorf("count by region: %w", err)
	}
	out := make(map[Region]int, len(AllRegions))
	for _, r := range AllRegions {
		out[r] = 0
	}
	for _, row := range rows {
		out[row.Region] += row.N
	}
	return out, nil
}

// InterestCounts tallies how many records declare each interest. A record
// contributes once to every tag in its set.
func (s *Store) InterestCounts(ctx context.Context) (map[Interest]int, error) {
	var sets []InterestSet
	if err := s.db.SelectContext(ctx, &sets, `SELECT interests FROM subscribers`); err != nil {
		return nil, fmt.Errorf("count by interest: %w", err)
	}
	out := make(map[Interest]int, len(AllInterests))
	for _, i := range AllInterests {
		out[i] = 0
	}
	for _, set := range sets {
		for i := range set {
			if i.Valid() {
				out[i]++
			}
		}
	}
	return out, nil
}

// ActiveIDs returns the platform ids of all active subscribers as of now.
func (s *Store) ActiveIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := s.db.Rebind(`SELECT platform_user_id FROM subscribers WHERE is_active = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &ids, query, true); err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	return ids, nil
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Subscriber, error) {
	if limit <= 0 {
		return nil, nil
	}
	var subs []Subscriber
	query := s.db.Rebind(`SELECT ` + columns + ` FROM subscribers ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &subs, query, limit); err != nil {
		return nil, fmt.Errorf("list recent subscribers: %w", err)
	}
	return subs, nil
}

// CreatedSince returns creation times of records created at or after since.
func (s *Store) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var out []time.Time
	query := s.db.Rebind(`SELECT created_at FROM subscribers WHERE created_at >= ? ORDER BY created_at`)
	if err := s.db.SelectContext(ctx, &out, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("list signups since %s: %w", since.Format(time.RFC3339), err)
	}
	return out, nil
}
