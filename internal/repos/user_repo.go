package repos

import (
	"kinara/internal/domain"

	"github.com/jmoiron/sqlx"
)

// UserRepo holds back-office accounts and the sid to user binding.
// Missing rows come back as domain.ErrNotFound.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `u.id,u.email,u.name,u.password_hash,u.role`

func (r *UserRepo) one(query string, args ...any) (*domain.User, error) {
	var u domain.User
	if err := r.DB.Get(&u, query, args...); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepo) ByEmail(email string) (*domain.User, error) {
	return r.one(`SELECT `+userCols+` FROM users u WHERE LOWER(u.email)=LOWER(?)`, email)
}

func (r *UserRepo) ByID(id string) (*domain.User, error) {
	return r.one(`SELECT `+userCols+` FROM users u WHERE u.id=?`, id)
}

// BindSession attaches a signed-in user to the storefront session. The cart
// row under the same sid is untouched.
func (r *UserRepo) BindSession(sid, userID string) error {
	_, err := r.DB.Exec(`
	  INSERT INTO sessions(id,user_id,last_seen) VALUES(?,?,CURRENT_TIMESTAMP)
	  ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,last_seen=CURRENT_TIMESTAMP`, sid, userID)
	return err
}

func (r *UserRepo) SessionUser(sid string) (*domain.User, error) {
	return r.one(`
	  SELECT `+userCols+`
	  FROM sessions s
	  JOIN users u ON u.id=s.user_id
	  WHERE s.id=?`, sid)
}

func (r *UserRepo) UnbindSession(sid string) error {
	_, err := r.DB.Exec(`UPDATE sessions SET user_id=NULL,last_seen=CURRENT_TIMESTAMP WHERE id=?`, sid)
	return err
}

// UpsertExternalUser records a Firebase-verified user. Such users have no
// password hash, so bcrypt login always fails for them.
func (r *UserRepo) UpsertExternalUser(id, email, name, role string) (*domain.User, error) {
	_, err := r.DB.Exec(`
	  INSERT INTO users(id,email,name,password_hash,role) VALUES(?,?,?,'',?)
	  ON CONFLICT(id) DO UPDATE SET email=excluded.email,name=excluded.name,role=excluded.role,updated_at=CURRENT_TIMESTAMP`,
		id, email, name, role)
	if err != nil {
		return nil, err
	}
	return r.ByID(id)
}
