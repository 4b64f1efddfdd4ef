package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"kinara/internal/session"
)

// CartRepo persists browsing sessions (cart ledger, catalog snapshot and last
// order) in the carts table, one row per sid cookie. It is the session store
// used when no Redis address is configured.
type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

func (r *CartRepo) Load(ctx context.Context, sid string) (*session.Session, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload, `SELECT payload FROM carts WHERE session_id = ?`, sid)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Empty(sid), nil
	}
	if err != nil {
		return nil, err
	}
	return session.Decode(sid, []byte(payload))
}

func (r *CartRepo) Save(ctx context.Context, s *session.Session) error {
	b, err := session.Encode(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO carts(session_id, payload, updated_at)
		VALUES(?,?,?)
		ON CONFLICT(session_id) DO UPDATE
		SET payload = excluded.payload, updated_at = excluded.updated_at
	`, s.ID, string(b), formatTS(s.UpdatedAt))
	return err
}

func (r *CartRepo) Delete(ctx context.Context, sid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE session_id = ?`, sid)
	return err
}

// PruneIdle drops sessions not saved since before cutoff and reports how many went.
func (r *CartRepo) PruneIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE updated_at < ?`, formatTS(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ session.Store = (*CartRepo)(nil)
