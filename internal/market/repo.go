package market

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("stall not found")
	ErrForbidden = errors.New("not the stall owner")
)

// dbconn is the pgx surface the repo needs; *pgxpool.Pool satisfies it.
type dbconn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ DB dbconn }

const stallCols = `id, owner_id, product, description, location, radius_m,
	quantity, price_cents, price_level, average_rating, rating_count,
	calories, fat_g, carbs_g, tags, allergens, options, includes,
	special_requests_allowed, created_at, updated_at`

func scanStall(row pgx.Row) (Stall, error) {
	var s Stall
	err := row.Scan(&s.ID, &s.OwnerID, &s.Product, &s.Description, &s.Location,
		&s.RadiusM, &s.Quantity, &s.PriceCents, &s.PriceLevel, &s.AverageRating,
		&s.RatingCount, &s.Calories, &s.FatG, &s.CarbsG, &s.Tags, &s.Allergens,
		&s.Options, &s.Includes, &s.SpecialRequestsAllowed, &s.CreatedAt,
		&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stall{}, ErrNotFound
	}
	return s, err
}

func (r *Repo) Get(ctx context.Context, id string) (Stall, error) {
	return scanStall(r.DB.QueryRow(ctx,
		`SELECT `+stallCols+` FROM stalls WHERE id=$1`, id))
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Stall, error) {
	q := `SELECT ` + stallCols + ` FROM stalls`
	var args []any
	where := ""
	if f.Tag != "" {
		args = append(args, f.Tag)
		where = ` WHERE $1 = ANY(tags)`
	}
	if f.Location != "" {
		args = append(args, "%"+f.Location+"%")
		if where == "" {
			where = ` WHERE location ILIKE $1`
		} else {
			where += ` AND location ILIKE $2`
		}
	}
	rows, err := r.DB.Query(ctx, q+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stall
	for rows.Next() {
		s, err := scanStall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, s Stall) (Stall, error) {
	s.ID = uuid.NewString()
	if s.PriceLevel <= 0 {
		s.PriceLevel = 1
	}
	normalizeSlices(&s)
	// ratings start at zero, special_requests_allowed at its column default
	return scanStall(r.DB.QueryRow(ctx, `
		INSERT INTO stalls(id, owner_id, product, description, location, radius_m,
			quantity, price_cents, price_level, calories, fat_g, carbs_g,
			tags, allergens, options, includes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING `+stallCols,
		s.ID, s.OwnerID, s.Product, s.Description, s.Location, s.RadiusM,
		s.Quantity, s.PriceCents, s.PriceLevel, s.Calories, s.FatG, s.CarbsG,
		s.Tags, s.Allergens, s.Options, s.Includes))
}

// Update rewrites the listing fields the owner controls. Quantity is not
// touched here; use SetQuantity so restocks stay separate from edits. The
// owner check rides in the WHERE clause: one statement, no read-then-write
// window.
func (r *Repo) Update(ctx context.Context, s Stall, ownerID string) (Stall, error) {
	normalizeSlices(&s)
	out, err := scanStall(r.DB.QueryRow(ctx, `
		UPDATE stalls SET product=$3, description=$4, location=$5, radius_m=$6,
			price_cents=$7, price_level=$8, calories=$9, fat_g=$10, carbs_g=$11,
			tags=$12, allergens=$13, options=$14, includes=$15,
			special_requests_allowed=$16, updated_at=now()
		WHERE id=$1 AND owner_id=$2
		RETURNING `+stallCols,
		s.ID, ownerID, s.Product, s.Description, s.Location, s.RadiusM,
		s.PriceCents, s.PriceLevel, s.Calories, s.FatG, s.CarbsG,
		s.Tags, s.Allergens, s.Options, s.Includes, s.SpecialRequestsAllowed))
	if errors.Is(err, ErrNotFound) {
		return Stall{}, r.ownedErr(ctx, s.ID)
	}
	return out, err
}

// SetQuantity is the owner restock path; negatives clamp to zero.
func (r *Repo) SetQuantity(ctx context.Context, id, ownerID string, qty int) (Stall, error) {
	if qty < 0 {
		qty = 0
	}
	out, err := scanStall(r.DB.QueryRow(ctx, `
		UPDATE stalls SET quantity=$3, updated_at=now()
		WHERE id=$1 AND owner_id=$2
		RETURNING `+stallCols, id, ownerID, qty))
	if errors.Is(err, ErrNotFound) {
		return Stall{}, r.ownedErr(ctx, id)
	}
	return out, err
}

func (r *Repo) Delete(ctx context.Context, id, ownerID string) error {
	ct, err := r.DB.Exec(ctx,
		`DELETE FROM stalls WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.ownedErr(ctx, id)
	}
	return nil
}

// ownedErr resolves a zero-row owned mutation: the stall either does not
// exist or belongs to someone else.
func (r *Repo) ownedErr(ctx context.Context, id string) error {
	var one int
	err := r.DB.QueryRow(ctx, `SELECT 1 FROM stalls WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrForbidden
}

func normalizeSlices(s *Stall) {
	if s.Tags == nil {
		s.Tags = []string{}
	}
	if s.Allergens == nil {
		s.Allergens = []string{}
	}
	if s.Options == nil {
		s.Options = []string{}
	}
	if s.Includes == nil {
		s.Includes = []string{}
	}
}
