package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"distribution-service/internal/domain"
)

// Seed mirrors the collaborator-owned data a local environment needs:
// distributors, stores, store assignments and orders.
type Seed struct {
	Distributors []DistributorSeed `json:"distributors"`
	Stores       []StoreSeed       `json:"stores"`
	Orders       []OrderSeed       `json:"orders"`
}

type DistributorSeed struct {
	ID     int64               `json:"id"`
	Name   string              `json:"name"`
	Active *bool               `json:"active"`
	Depot  *domain.Coordinates `json:"depot"`
	Stores []int64             `json:"stores"`
}

type StoreSeed struct {
	ID       int64               `json:"id"`
	Name     string              `json:"name"`
	Address  string              `json:"address"`
	Location *domain.Coordinates `json:"location"`
}

type OrderSeed struct {
	ID            int64  `json:"id"`
	DistributorID int64  `json:"distributor_id"`
	StoreID       int64  `json:"store_id"`
	Priority      int    `json:"priority"`
	Status        string `json:"status"`
	DeliveryDate  string `json:"delivery_date"`
}

// ReadSeed loads and validates a seed file.
func ReadSeed(jsonPath string) (Seed, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return Seed{}, fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var s Seed
	if err := json.Unmarshal(bytes, &s); err != nil {
		return Seed{}, fmt.Errorf("seed: parse json: %w", err)
	}

	if err := s.validate(); err != nil {
		return Seed{}, err
	}
	return s, nil
}

func (s Seed) validate() error {
	stores := make(map[int64]bool, len(s.Stores))
	for i, st := range s.Stores {
		if st.ID <= 0 {
			return fmt.Errorf("seed: invalid store id at index %d: %d", i+1, st.ID)
		}
		if st.Location != nil && !st.Location.Valid() {
			return fmt.Errorf("seed: store %d: coordinates out of range", st.ID)
		}
		stores[st.ID] = true
	}

	for i, d := range s.Distributors {
		if d.ID <= 0 {
			return fmt.Errorf("seed: invalid distributor id at index %d: %d", i+1, d.ID)
		}
		for _, id := range d.Stores {
			if !stores[id] {
				return fmt.Errorf("seed: distributor %d: unknown store %d", d.ID, id)
			}
		}
	}

	for i, o := range s.Orders {
		if o.ID <= 0 {
			return fmt.Errorf("seed: invalid order id at index %d: %d", i+1, o.ID)
		}
		if !stores[o.StoreID] {
			return fmt.Errorf("seed: order %d: unknown store %d", o.ID, o.StoreID)
		}
		if strings.TrimSpace(o.Status) == "" {
			return fmt.Errorf("seed: order %d: status cannot be empty", o.ID)
		}
		if _, err := domain.ParseDate(o.DeliveryDate); err != nil {
			return fmt.Errorf("seed: order %d: %w", o.ID, err)
		}
	}

	return nil
}

// SeedFromJSON upserts the contents of a seed file in one transaction.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	s, err := ReadSeed(jsonPath)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, st := range s.Stores {
		lat, lon := nullCoords(st.Location)
		_, err := tx.ExecContext(ctx, `
		INSERT INTO stores (id, name, address, lat, lon)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon;
		`, st.ID, st.Name, st.Address, lat, lon)
		if err != nil {
			return fmt.Errorf("seed: insert store id=%d: %w", st.ID, err)
		}
	}

	for _, d := range s.Distributors {
		active := true
		if d.Active != nil {
			active = *d.Active
		}
		lat, lon := nullCoords(d.Depot)
		_, err := tx.ExecContext(ctx, `
		INSERT INTO distributors (id, name, active, depot_lat, depot_lon)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			active = EXCLUDED.active,
			depot_lat = EXCLUDED.depot_lat,
			depot_lon = EXCLUDED.depot_lon;
		`, d.ID, d.Name, active, lat, lon)
		if err != nil {
			return fmt.Errorf("seed: insert distributor id=%d: %w", d.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM distributor_stores WHERE distributor_id = $1;`, d.ID); err != nil {
			return fmt.Errorf("seed: reset assignments distributor=%d: %w", d.ID, err)
		}
		for pos, storeID := range d.Stores {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO distributor_stores (distributor_id, store_id, position)
			VALUES ($1, $2, $3);
			`, d.ID, storeID, pos)
			if err != nil {
				return fmt.Errorf("seed: assign store %d to distributor %d: %w", storeID, d.ID, err)
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO orders (id, distributor_id, store_id, priority, status, delivery_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET distributor_id = EXCLUDED.distributor_id,
		store_id = EXCLUDED.store_id,
		priority = EXCLUDED.priority,
		status = EXCLUDED.status,
		delivery_date = EXCLUDED.delivery_date;
	`)
	if err != nil {
		return fmt.Errorf("seed: prepare order insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range s.Orders {
		date, _ := domain.ParseDate(o.DeliveryDate)
		if _, err := stmt.ExecContext(ctx, o.ID, o.DistributorID, o.StoreID, o.Priority, o.Status, date); err != nil {
			return fmt.Errorf("seed: insert order id=%d: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
