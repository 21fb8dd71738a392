// Package user provides the concrete SQL-based implementation of the
// user account repository, including the bounding-radius spatial
// primitive used by the notification core.
package user

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/persistence/database"
	"github.com/agropulse/cropalert-go/pkg/config"
)

// SQLUserRepository is the SQL-based implementation of user.Repository.
type SQLUserRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLUserRepository creates a new instance of the repository.
func NewSQLUserRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLUserRepository {
	return &SQLUserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, role,
       is_approved, subscribed_crops, latitude, longitude, created_at`

// FindByID retrieves an account by its unique identifier.
func (r *SQLUserRepository) FindByID(id string) (*user.Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading user by ID", "id", id)

	account, err := r.scanAccount(r.db.QueryRow(query, id))
	if err != nil {
		r.logger.Database().Error("Failed to load user by ID", "error", err.Error(), "id", id)
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return account, nil
}

// FindByEmail retrieves an account by email address.
func (r *SQLUserRepository) FindByEmail(email string) (*user.Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading user by email", "email", email)

	account, err := r.scanAccount(r.db.QueryRow(query, email))
	if err != nil {
		r.logger.Database().Error("Failed to load user by email", "error", err.Error(), "email", email)
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return account, nil
}

// Store saves a new account to the database.
func (r *SQLUserRepository) Store(account *user.Account) error {
	const query = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role,
		                   is_approved, subscribed_crops, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing user insert", "id", account.ID, "email", account.Email)

	crops, err := json.Marshal(account.SubscribedCrops)
	if err != nil {
		return fmt.Errorf("failed to encode subscribed crops: %w", err)
	}

	var lat, lng any
	if account.Location != nil {
		lat = account.Location.Latitude
		lng = account.Location.Longitude
	}

	_, err = r.db.Exec(
		query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		string(account.Role),
		account.IsApproved,
		string(crops),
		lat,
		lng,
		account.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("User insert failed", "error", err.Error(), "id", account.ID, "email", account.Email)
		return err
	}

	r.logger.Database().Info("User insert completed", "id", account.ID, "email", account.Email, "duration", time.Since(start))
	return nil
}

// UpdateProfile replaces the crop subscriptions and location of a user.
func (r *SQLUserRepository) UpdateProfile(id string, crops []string, location *geo.Point) error {
	const query = `UPDATE users SET subscribed_crops = ?, latitude = ?, longitude = ? WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Executing profile update", "id", id)

	encoded, err := json.Marshal(crops)
	if err != nil {
		return fmt.Errorf("failed to encode subscribed crops: %w", err)
	}

	var lat, lng any
	if location != nil {
		lat = location.Latitude
		lng = location.Longitude
	}

	if _, err := r.db.Exec(query, string(encoded), lat, lng, id); err != nil {
		r.logger.Database().Error("Profile update failed", "error", err.Error(), "id", id)
		return err
	}

	r.logger.Database().Info("Profile update completed", "id", id, "duration", time.Since(start))
	return nil
}

// SetApproval flips the approval flag of an account.
func (r *SQLUserRepository) SetApproval(id string, approved bool) error {
	const query = `UPDATE users SET is_approved = ? WHERE id = ?`

	r.logger.Database().Debug("Executing approval update", "id", id, "approved", approved)

	result, err := r.db.Exec(query, approved, id)
	if err != nil {
		r.logger.Database().Error("Approval update failed", "error", err.Error(), "id", id)
		return err
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindPending returns unapproved identities of the given role.
func (r *SQLUserRepository) FindPending(role user.Role) ([]user.Identity, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ? AND is_approved = 0`

	r.logger.Database().Debug("Loading pending users", "role", string(role))

	rows, err := r.db.Query(query, string(role))
	if err != nil {
		r.logger.Database().Error("Failed to load pending users", "error", err.Error(), "role", string(role))
		return nil, err
	}
	defer rows.Close()

	return r.collectIdentities(rows)
}

// FindWithinRadius is the spatial primitive: it returns identity
// snapshots of users matching the role filter whose location lies within
// radiusMeters of center. A coarse bounding box narrows the scan in SQL;
// the precise great-circle distance is checked in process.
func (r *SQLUserRepository) FindWithinRadius(center geo.Point, radiusMeters float64, filter user.RoleFilter) ([]user.Identity, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE role = ?
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?`
	if filter.ApprovedOnly {
		query += ` AND is_approved = 1`
	}

	start := time.Now()
	r.logger.Database().Debug("Executing radius query",
		"lat", center.Latitude, "lng", center.Longitude, "radiusMeters", radiusMeters, "role", string(filter.Role))

	minLat, maxLat, minLng, maxLng := geo.BoundingBox(center, radiusMeters)

	rows, err := r.db.Query(query, string(filter.Role), minLat, maxLat, minLng, maxLng)
	if err != nil {
		r.logger.Database().Error("Radius query failed", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	boxed, err := r.collectIdentities(rows)
	if err != nil {
		return nil, err
	}

	within := make([]user.Identity, 0, len(boxed))
	for _, ident := range boxed {
		if ident.Location == nil {
			continue
		}
		if geo.DistanceMeters(center, *ident.Location) <= radiusMeters {
			within = append(within, ident)
		}
	}

	duration := time.Since(start)
	r.logger.Database().Info("Radius query completed",
		"boxed", len(boxed), "within", len(within), "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return within, nil
}

// scanAccount scans a single row into an Account. Returns (nil, nil)
// when no row matched.
func (r *SQLUserRepository) scanAccount(row *sql.Row) (*user.Account, error) {
	var account user.Account
	var role, crops, createdAtStr string
	var approved int
	var lat, lng sql.NullFloat64

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&role,
		&approved,
		&crops,
		&lat,
		&lng,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if err := fillIdentity(&account.Identity, role, approved, crops, lat, lng, createdAtStr); err != nil {
		return nil, err
	}
	return &account, nil
}

// collectIdentities drains a result set of userColumns rows into
// identity snapshots, discarding password hashes.
func (r *SQLUserRepository) collectIdentities(rows *sql.Rows) ([]user.Identity, error) {
	var identities []user.Identity
	for rows.Next() {
		var ident user.Identity
		var passwordHash, role, crops, createdAtStr string
		var approved int
		var lat, lng sql.NullFloat64

		err := rows.Scan(
			&ident.ID,
			&ident.Email,
			&passwordHash,
			&ident.FirstName,
			&ident.LastName,
			&role,
			&approved,
			&crops,
			&lat,
			&lng,
			&createdAtStr,
		)
		if err != nil {
			return nil, err
		}
		if err := fillIdentity(&ident, role, approved, crops, lat, lng, createdAtStr); err != nil {
			return nil, err
		}
		identities = append(identities, ident)
	}
	return identities, rows.Err()
}

func fillIdentity(ident *user.Identity, role string, approved int, crops string, lat, lng sql.NullFloat64, createdAtStr string) error {
	ident.Role = user.Role(role)
	ident.IsApproved = approved != 0

	if crops == "" {
		crops = "[]"
	}
	if err := json.Unmarshal([]byte(crops), &ident.SubscribedCrops); err != nil {
		return fmt.Errorf("failed to decode subscribed crops: %w", err)
	}

	if lat.Valid && lng.Valid {
		p := geo.NewPoint(lng.Float64, lat.Float64)
		ident.Location = &p
	}

	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		// Try alternative timestamp format if RFC3339 fails
		createdAt, err = time.Parse("2006-01-02 15:04:05", createdAtStr)
		if err != nil {
			return err
		}
	}
	ident.CreatedAt = createdAt
	return nil
}
