package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

const userColumns = `id, email, password_hash, auth_provider, name, role, full_name, nim, prodi, phone_number, jenis_kelamin, is_ibaf_member, ibaf_membership_number, verification_status, verification_requested_at, rejection_reason, approved_at, approved_by, rejected_at, rejected_by, is_active, is_banned, banned_at, banned_by, unbanned_at, unbanned_by, last_login, created_at, updated_at`

// CascadeResult counts the rows removed by a hard delete.
type CascadeResult struct {
	WorkoutLogs   int64 `json:"workoutLogs"`
	UserMessages  int64 `json:"userMessages"`
	AdminMessages int64 `json:"adminMessages"`
}

// UserRepository provides database access for member and admin accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistingIDs returns the subset of ids that have a users row.
func (r *UserRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []string
	if err := r.db.SelectContext(ctx, &rows, `SELECT id FROM users WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lookup user ids: %w", err)
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

// List returns users matching the filter with the total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if cond := tabCondition(filter.Tab); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d OR LOWER(full_name) LIKE $%d OR nim LIKE $%d)", n, n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":                     true,
		"name":                      true,
		"created_at":                true,
		"updated_at":                true,
		"verification_requested_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

func tabCondition(tab models.UserStatusTab) string {
	switch tab {
	case models.UserTabApproved, models.UserTabPending, models.UserTabRejected:
		return fmt.Sprintf("verification_status = '%s'", tab)
	case models.UserTabNotSubmitted:
		return "verification_status IN ('not_submitted', '')"
	default:
		return ""
	}
}

// CountByStatus returns the per-tab counts of the admin user list.
func (r *UserRepository) CountByStatus(ctx context.Context) (models.UserStatusCounts, error) {
	const query = `SELECT
		COUNT(*) AS all_count,
		COUNT(*) FILTER (WHERE verification_status = 'approved') AS approved,
		COUNT(*) FILTER (WHERE verification_status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE verification_status = 'rejected') AS rejected,
		COUNT(*) FILTER (WHERE verification_status IN ('not_submitted', '')) AS not_submitted
	FROM users`
	var counts models.UserStatusCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.UserStatusCounts{}, fmt.Errorf("count users by status: %w", err)
	}
	return counts, nil
}

// CountActivity returns the total and active user counts.
func (r *UserRepository) CountActivity(ctx context.Context) (total, active int, err error) {
	const query = `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`
	if err := r.db.QueryRowxContext(ctx, query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("count user activity: %w", err)
	}
	return total, active, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, auth_provider, name, role, verification_status, is_active, is_banned, created_at, updated_at) VALUES (:id, :email, :password_hash, :auth_provider, :name, :role, :verification_status, :is_active, :is_banned, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SaveLifecycle persists verification, moderation and profile fields of one
// user in a single row update.
func (r *UserRepository) SaveLifecycle(ctx context.Context, user *models.User) error {
	const query = `UPDATE users SET
		name = :name, full_name = :full_name, nim = :nim, prodi = :prodi, phone_number = :phone_number,
		jenis_kelamin = :jenis_kelamin, is_ibaf_member = :is_ibaf_member, ibaf_membership_number = :ibaf_membership_number,
		verification_status = :verification_status, verification_requested_at = :verification_requested_at,
		rejection_reason = :rejection_reason, approved_at = :approved_at, approved_by = :approved_by,
		rejected_at = :rejected_at, rejected_by = :rejected_by, is_active = :is_active, is_banned = :is_banned,
		banned_at = :banned_at, banned_by = :banned_by, unbanned_at = :unbanned_at, unbanned_by = :unbanned_by,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("save user lifecycle: %w", err)
	}
	return expectAffected(res, "save user lifecycle")
}

// UpdateEmail changes the login email.
func (r *UserRepository) UpdateEmail(ctx context.Context, id, email string, updatedAt time.Time) error {
	const query = `UPDATE users SET email = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, email, updatedAt); err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteCascade removes a user and every dependent row in one transaction.
func (r *UserRepository) DeleteCascade(ctx context.Context, id string) (CascadeResult, error) {
	var result CascadeResult
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM workout_logs WHERE user_id = $1`, &result.WorkoutLogs},
		{`DELETE FROM user_messages WHERE user_id = $1`, &result.UserMessages},
		{`DELETE FROM admin_messages WHERE user_id = $1`, &result.AdminMessages},
		{`DELETE FROM refresh_tokens WHERE user_id = $1`, nil},
	}
	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.query, id)
		if err != nil {
			return CascadeResult{}, fmt.Errorf("delete user dependents: %w", err)
		}
		if step.count != nil {
			*step.count, _ = res.RowsAffected()
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("delete user: %w", err)
	}
	if err := expectAffected(res, "delete user"); err != nil {
		return CascadeResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return CascadeResult{}, fmt.Errorf("commit delete user: %w", err)
	}
	return result, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
