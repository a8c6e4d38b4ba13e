// Package favorites provides persistent storage for favorited stations.
package favorites

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wavehop/wavehop/internal/domain/station"
)

const schema = `
CREATE TABLE IF NOT EXISTS favorites (
	station_id TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	country    TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '',
	stream_url TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

// Store persists favorited stations in a local SQLite database.
type Store struct {
	db *sqlx.DB
}

// favoriteRow is the database representation of a favorite.
type favoriteRow struct {
	StationID string    `db:"station_id"`
	Name      string    `db:"name"`
	Country   string    `db:"country"`
	Tags      string    `db:"tags"`
	StreamURL string    `db:"stream_url"`
	CreatedAt time.Time `db:"created_at"`
}

// Open opens (creating if necessary) the favorites database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open favorites database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create favorites table")
	}

	return &Store{db: db}, nil
}

// Add stores a station as a favorite. Re-adding an existing favorite
// replaces the stored row and refreshes its creation time.
func (s *Store) Add(st station.Station) error {
	if st.ID == "" {
		return errors.New("station id is required")
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO favorites (station_id, name, country, tags, stream_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Country, st.TagString(), st.StreamURL(), time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to add favorite")
	}
	return nil
}

// Remove deletes a favorite by station identifier. Removing an absent
// favorite is not an error.
func (s *Store) Remove(stationID string) error {
	_, err := s.db.Exec(`DELETE FROM favorites WHERE station_id = ?`, stationID)
	if err != nil {
		return errors.Wrap(err, "failed to remove favorite")
	}
	return nil
}

// Contains reports whether a station is favorited.
func (s *Store) Contains(stationID string) (bool, error) {
	var count int
	if err := s.db.Get(&count, `SELECT COUNT(*) FROM favorites WHERE station_id = ?`, stationID); err != nil {
		return false, errors.Wrap(err, "failed to check favorite")
	}
	return count > 0, nil
}

// List returns all favorites ordered by creation time, oldest first.
func (s *Store) List() ([]station.Favorite, error) {
	var rows []favoriteRow
	if err := s.db.Select(&rows, `SELECT * FROM favorites ORDER BY created_at ASC`); err != nil {
		return nil, errors.Wrap(err, "failed to list favorites")
	}

	favorites := make([]station.Favorite, 0, len(rows))
	for _, r := range rows {
		favorites = append(favorites, station.Favorite{
			Station: station.Station{
				ID:      r.StationID,
				Name:    r.Name,
				Country: r.Country,
				Tags:    station.ParseTags(r.Tags),
				URL:     r.StreamURL,
			},
			CreatedAt: r.CreatedAt,
		})
	}
	return favorites, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
