package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/user"
)

type profileRow struct {
	ID     string `db:"id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Role   string `db:"role"`
	Avatar string `db:"avatar"`
}

func (row profileRow) toUser() user.User {
	usr := user.User{ID: row.ID, Name: row.Name, Email: row.Email, Avatar: row.Avatar}
	if r, err := user.ParseRole(row.Role); err == nil {
		usr.Role = r
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	row := profileRow{ID: usr.ID, Name: usr.Name, Email: usr.Email, Avatar: usr.Avatar, Role: user.Learner.String()}
	if usr.Role != nil {
		row.Role = usr.Role.String()
	}
	q := `INSERT INTO profiles (id, name, email, role, avatar) VALUES (:id, :name, :email, :role, :avatar)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting profile")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, name, email, role, avatar FROM profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "selecting profile")
	}
	return row.toUser(), nil
}
