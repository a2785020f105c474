package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	kpi "fleet-telemetry/internal/kpi/domain"
)

const defaultZoneTable = "organization_zones"

// ZoneRepository loads organization zones from Postgres. Zone geometry is
// stored as a JSON array of [lat, lon] vertex pairs.
type ZoneRepository struct {
	db    *sql.DB
	table string
}

// ZoneRepositoryOption configures the repository.
type ZoneRepositoryOption func(*ZoneRepository)

// WithZoneTable overrides the default table name.
func WithZoneTable(table string) ZoneRepositoryOption {
	return func(repo *ZoneRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewZoneRepository constructs a repository with default table name.
func NewZoneRepository(db *sql.DB, opts ...ZoneRepositoryOption) *ZoneRepository {
	repo := &ZoneRepository{db: db, table: defaultZoneTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FindZones returns the organization's zones.
func (r *ZoneRepository) FindZones(ctx context.Context, orgID string) ([]kpi.Zone, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("zone repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("zone repo: empty org id")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, name, kind, polygon
FROM %s
WHERE org_id = $1
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []kpi.Zone
	for rows.Next() {
		var zone kpi.Zone
		var kind string
		var polygon []byte
		if err := rows.Scan(&zone.ID, &zone.OrgID, &zone.Name, &kind, &polygon); err != nil {
			return nil, err
		}
		zone.Kind = kpi.ZoneKind(kind)
		vertices, err := decodePolygon(polygon)
		if err != nil {
			return nil, fmt.Errorf("zone repo: zone %s: %w", zone.ID, err)
		}
		zone.Polygon = vertices
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

func decodePolygon(raw []byte) ([]kpi.Point, error) {
	var pairs [][2]float64
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, err
	}
	points := make([]kpi.Point, 0, len(pairs))
	for _, pair := range pairs {
		points = append(points, kpi.Point{Latitude: pair[0], Longitude: pair[1]})
	}
	return points, nil
}
