package postgres

import (
	"context"
	"database/sql"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, name, gender, travel_grouping, approved_driver, admin, average_rating, total_reviews, created_at`

// Create adds a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, name, gender, travel_grouping, approved_driver, admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, nullString(string(p.Gender)), p.TravelGrouping, p.ApprovedDriver, p.Admin, p.CreatedAt)
	return err
}

// GetByID retrieves a profile by ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetAll retrieves all profiles.
func (r *ProfileRepository) GetAll(ctx context.Context) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SetApprovedDriver updates the driver approval flag.
func (r *ProfileRepository) SetApprovedDriver(ctx context.Context, id string, approved bool) error {
	return r.setFlag(ctx, `UPDATE profiles SET approved_driver = $2 WHERE id = $1`, id, approved)
}

// SetAdmin updates the admin flag.
func (r *ProfileRepository) SetAdmin(ctx context.Context, id string, admin bool) error {
	return r.setFlag(ctx, `UPDATE profiles SET admin = $2 WHERE id = $1`, id, admin)
}

func (r *ProfileRepository) setFlag(ctx context.Context, query, id string, value bool) error {
	result, err := r.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	var gender sql.NullString
	if err := row.Scan(
		&p.ID, &p.Name, &gender, &p.TravelGrouping, &p.ApprovedDriver, &p.Admin,
		&p.AverageRating, &p.TotalReviews, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Gender = domain.Gender(gender.String)
	return &p, nil
}

// Ensure ProfileRepository implements repository.ProfileRepository.
var _ repository.ProfileRepository = (*ProfileRepository)(nil)
