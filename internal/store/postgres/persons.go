package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/recallapp/recall/internal/store"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *Pool
}

// NewStore creates a PostgreSQL-backed store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *Pool {
	return s.pool
}

// GetPerson retrieves a person with embeddings in insertion order.
func (s *Store) GetPerson(ctx context.Context, id uuid.UUID) (*store.Person, error) {
	var p store.Person
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, created_at FROM persons WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, person_id, embedding, crop_ref, bounding_box_id, encounter_id, created_at
		FROM face_embeddings
		WHERE person_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	p.Embeddings, err = scanEmbeddings(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPersons returns all persons with embeddings loaded, oldest first.
func (s *Store) ListPersons(ctx context.Context) ([]store.Person, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, created_at FROM persons ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []store.Person
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var p store.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		index[p.ID] = len(persons)
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}

	embRows, err := s.pool.Query(ctx, `
		SELECT id, person_id, embedding, crop_ref, bounding_box_id, encounter_id, created_at
		FROM face_embeddings
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer embRows.Close()

	embeddings, err := scanEmbeddings(embRows)
	if err != nil {
		return nil, err
	}
	for _, emb := range embeddings {
		if i, ok := index[emb.PersonID]; ok {
			persons[i].Embeddings = append(persons[i].Embeddings, emb)
		}
	}
	return persons, nil
}

// CountPersons returns the number of persons stored.
func (s *Store) CountPersons(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM persons").Scan(&count); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return count, nil
}

// CreatePerson stores a new person with the given name.
func (s *Store) CreatePerson(ctx context.Context, name string) (*store.Person, error) {
	p := store.Person{ID: uuid.New(), Name: name}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO persons (id, name) VALUES ($1, $2) RETURNING created_at",
		p.ID, p.Name,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	return &p, nil
}

// DeletePerson removes a person and cascades deletion of owned embeddings.
func (s *Store) DeletePerson(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_embeddings WHERE person_id = $1", id); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM persons WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete person rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit person deletion: %w", err)
	}
	return nil
}

// AddEmbedding attaches a face embedding to its person.
func (s *Store) AddEmbedding(ctx context.Context, emb store.FaceEmbedding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO face_embeddings (id, person_id, embedding, crop_ref, bounding_box_id, encounter_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		emb.ID,
		emb.PersonID,
		pgvector.NewVector(emb.Vector),
		emb.CropRef,
		nullableUUID(emb.BoundingBoxID),
		nullableUUID(emb.EncounterID),
	)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// DeleteEmbeddings removes the given embeddings in one statement.
func (s *Store) DeleteEmbeddings(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE id = ANY($1::uuid[])", pq.Array(strs)); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

// nullableUUID maps uuid.Nil to SQL NULL.
func nullableUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

// scanEmbeddings reads embedding rows into store types.
func scanEmbeddings(rows *sql.Rows) ([]store.FaceEmbedding, error) {
	var out []store.FaceEmbedding
	for rows.Next() {
		var emb store.FaceEmbedding
		var vec pgvector.Vector
		var boxID, encID uuid.NullUUID
		if err := rows.Scan(&emb.ID, &emb.PersonID, &vec, &emb.CropRef, &boxID, &encID, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Vector = vec.Slice()
		emb.BoundingBoxID = boxID.UUID
		emb.EncounterID = encID.UUID
		out = append(out, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}
