// Package alert provides the concrete SQL-based implementation of the
// alert repository.
package alert

import (
	"database/sql"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/persistence/database"
	"github.com/agropulse/cropalert-go/pkg/config"
)

// SQLAlertRepository is the SQL-based implementation of alert.Repository.
type SQLAlertRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLAlertRepository creates a new instance of the repository.
func NewSQLAlertRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLAlertRepository {
	return &SQLAlertRepository{
		db:     db,
		logger: logger,
	}
}

// alertColumns joins the creator row so payloads can carry a display
// name without a second lookup.
const alertColumns = `a.id, a.title, a.description, a.severity, a.alert_type, a.crop_type,
       a.latitude, a.longitude, a.created_at, a.expires_at, a.creator_id,
       u.first_name || ' ' || u.last_name AS creator_name`

const alertFrom = ` FROM alerts a JOIN users u ON u.id = a.creator_id`

// FindByID retrieves an alert by its unique identifier. Returns
// (nil, nil) when no alert matched.
func (r *SQLAlertRepository) FindByID(id string) (*alert.Alert, error) {
	query := `SELECT ` + alertColumns + alertFrom + ` WHERE a.id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading alert by ID", "id", id)

	rows, err := r.db.Query(query, id)
	if err != nil {
		r.logger.Database().Error("Failed to load alert by ID", "error", err.Error(), "id", id)
		return nil, err
	}
	defer rows.Close()

	alerts, err := r.collectAlerts(rows)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		r.logger.Database().Debug("Alert not found by ID", "id", id)
		return nil, nil
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return &alerts[0], nil
}

// FindAll returns every stored alert, expired ones included; callers
// apply the activity predicate.
func (r *SQLAlertRepository) FindAll() ([]alert.Alert, error) {
	query := `SELECT ` + alertColumns + alertFrom + ` ORDER BY a.created_at DESC`

	start := time.Now()
	r.logger.Database().Debug("Loading all alerts")

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Database().Error("Failed to load alerts", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	alerts, err := r.collectAlerts(rows)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Alerts loaded", "count", len(alerts), "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return alerts, nil
}

// FindByCreator returns the alerts authored by one user.
func (r *SQLAlertRepository) FindByCreator(creatorID string) ([]alert.Alert, error) {
	query := `SELECT ` + alertColumns + alertFrom + ` WHERE a.creator_id = ? ORDER BY a.created_at DESC`

	r.logger.Database().Debug("Loading alerts by creator", "creatorId", creatorID)

	rows, err := r.db.Query(query, creatorID)
	if err != nil {
		r.logger.Database().Error("Failed to load alerts by creator", "error", err.Error(), "creatorId", creatorID)
		return nil, err
	}
	defer rows.Close()

	return r.collectAlerts(rows)
}

// FindWithinRadius returns alerts for a crop within radiusMeters of
// center, using the same bounding-box-then-haversine plan as the user
// radius query.
func (r *SQLAlertRepository) FindWithinRadius(center geo.Point, radiusMeters float64, cropType string) ([]alert.Alert, error) {
	query := `SELECT ` + alertColumns + alertFrom + `
		WHERE a.crop_type = ?
		  AND a.latitude BETWEEN ? AND ?
		  AND a.longitude BETWEEN ? AND ?`

	start := time.Now()
	r.logger.Database().Debug("Executing alert radius query",
		"lat", center.Latitude, "lng", center.Longitude, "radiusMeters", radiusMeters, "cropType", cropType)

	minLat, maxLat, minLng, maxLng := geo.BoundingBox(center, radiusMeters)

	rows, err := r.db.Query(query, cropType, minLat, maxLat, minLng, maxLng)
	if err != nil {
		r.logger.Database().Error("Alert radius query failed", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	boxed, err := r.collectAlerts(rows)
	if err != nil {
		return nil, err
	}

	within := make([]alert.Alert, 0, len(boxed))
	for _, a := range boxed {
		if geo.DistanceMeters(center, a.Location) <= radiusMeters {
			within = append(within, a)
		}
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return within, nil
}

// Store saves a new alert to the database.
func (r *SQLAlertRepository) Store(a *alert.Alert) error {
	const query = `
		INSERT INTO alerts (id, title, description, severity, alert_type, crop_type,
		                    latitude, longitude, created_at, expires_at, creator_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing alert insert", "id", a.ID, "title", a.Title)

	_, err := r.db.Exec(
		query,
		a.ID,
		a.Title,
		a.Description,
		string(a.Severity),
		string(a.AlertType),
		a.CropType,
		a.Location.Latitude,
		a.Location.Longitude,
		a.CreatedAt.UTC().Format(time.RFC3339),
		formatExpiry(a.ExpiresAt),
		a.CreatorID,
	)
	if err != nil {
		r.logger.Database().Error("Alert insert failed", "error", err.Error(), "id", a.ID)
		return err
	}

	r.logger.Database().Info("Alert insert completed", "id", a.ID, "duration", time.Since(start))
	return nil
}

// Update modifies an existing alert in the database.
func (r *SQLAlertRepository) Update(a *alert.Alert) error {
	const query = `
		UPDATE alerts
		SET title = ?, description = ?, severity = ?, alert_type = ?, crop_type = ?,
		    latitude = ?, longitude = ?, expires_at = ?
		WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Executing alert update", "id", a.ID)

	_, err := r.db.Exec(
		query,
		a.Title,
		a.Description,
		string(a.Severity),
		string(a.AlertType),
		a.CropType,
		a.Location.Latitude,
		a.Location.Longitude,
		formatExpiry(a.ExpiresAt),
		a.ID,
	)
	if err != nil {
		r.logger.Database().Error("Alert update failed", "error", err.Error(), "id", a.ID)
		return err
	}

	r.logger.Database().Info("Alert update completed", "id", a.ID, "duration", time.Since(start))
	return nil
}

// Delete removes an alert from the database.
func (r *SQLAlertRepository) Delete(id string) error {
	const query = `DELETE FROM alerts WHERE id = ?`

	r.logger.Database().Debug("Executing alert delete", "id", id)

	if _, err := r.db.Exec(query, id); err != nil {
		r.logger.Database().Error("Alert delete failed", "error", err.Error(), "id", id)
		return err
	}

	r.logger.Database().Info("Alert delete completed", "id", id)
	return nil
}

func (r *SQLAlertRepository) collectAlerts(rows *sql.Rows) ([]alert.Alert, error) {
	var alerts []alert.Alert
	for rows.Next() {
		var a alert.Alert
		var severity, alertType, createdAtStr string
		var expiresAt sql.NullString
		var lat, lng float64

		err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Description,
			&severity,
			&alertType,
			&a.CropType,
			&lat,
			&lng,
			&createdAtStr,
			&expiresAt,
			&a.CreatorID,
			&a.CreatorName,
		)
		if err != nil {
			return nil, err
		}

		a.Severity = alert.Severity(severity)
		a.AlertType = alert.Type(alertType)
		a.Location = geo.NewPoint(lng, lat)

		a.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, err
		}
		if expiresAt.Valid && expiresAt.String != "" {
			t, err := time.Parse(time.RFC3339, expiresAt.String)
			if err != nil {
				return nil, err
			}
			a.ExpiresAt = &t
		}

		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func formatExpiry(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
