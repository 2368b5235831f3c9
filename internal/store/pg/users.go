package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

func (r *Repository) GetUser(ctx context.Context, userID int64) (*store.User, error) {
	var u store.User
	var username, first, last *string
	err := r.db.QueryRow(ctx,
		`SELECT user_id, username, first_name, last_name, created_at, updated_at
		 FROM users WHERE user_id = $1`, userID).
		Scan(&u.ID, &username, &first, &last, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get user", err)
	}
	u.Username = deref(username)
	u.FirstName = deref(first)
	u.LastName = deref(last)
	return &u, nil
}

func (r *Repository) GetUserRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.role_name
		 FROM roles r
		 JOIN user_roles ur ON r.role_id = ur.role_id
		 WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, wrap("get user roles", err)
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap("get user roles: scan", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get user roles: rows", err)
	}
	return roles, nil
}

// orderColumns is the whitelist for the dossier's ORDER BY; the column name
// cannot be a bind parameter.
var orderColumns = map[string]string{
	"":                 "d.updated_at ASC",
	"updated_at ASC":   "d.updated_at ASC",
	"updated_at DESC":  "d.updated_at DESC",
	"created_at ASC":   "d.created_at ASC",
	"created_at DESC":  "d.created_at DESC",
}

// GetUserAndDrops fetches the user, their roles, and their drop history in
// the given statuses, for rendering the operator dossier.
func (r *Repository) GetUserAndDrops(ctx context.Context, userID int64, statuses []string, orderBy string) (*store.UserDossier, error) {
	order, ok := orderColumns[orderBy]
	if !ok {
		return nil, fmt.Errorf("get user and drops: %w: bad order %q", store.ErrStorage, orderBy)
	}

	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := r.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT d.drop_id, d.status, d.lost, d.area_name, d.batch_amount, d.updated_at,
		        c.city, r.reason, p.emoji
		 FROM drops d
		 JOIN products p ON p.name = d.product_name
		 LEFT JOIN cities c ON d.city_id = c.city_id
		 LEFT JOIN redrop_reason r ON d.drop_id = r.drop_id
		 WHERE d.client_id = $1 AND d.status = ANY($2)
		 ORDER BY `+order, userID, statuses)
	if err != nil {
		return nil, wrap("get user and drops", err)
	}
	defer rows.Close()

	var drops []store.Drop
	for rows.Next() {
		var d store.Drop
		var area, city, reason, emoji *string
		if err := rows.Scan(&d.ID, &d.Status, &d.Lost, &area, &d.Amount, &d.UpdatedAt, &city, &reason, &emoji); err != nil {
			return nil, wrap("get user and drops: scan", err)
		}
		d.AreaName = deref(area)
		d.CityName = deref(city)
		d.Reason = deref(reason)
		d.ProductEmoji = deref(emoji)
		drops = append(drops, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get user and drops: rows", err)
	}

	return &store.UserDossier{User: *user, Roles: roles, Drops: drops}, nil
}
