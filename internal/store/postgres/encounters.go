package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
)

// GetEncounter retrieves an encounter with photos and boxes loaded.
func (s *Store) GetEncounter(ctx context.Context, id uuid.UUID) (*store.Encounter, error) {
	var enc store.Encounter
	var lat, lng sql.NullFloat64
	err := s.pool.QueryRow(ctx,
		"SELECT id, taken_at, lat, lng FROM encounters WHERE id = $1", id,
	).Scan(&enc.ID, &enc.TakenAt, &lat, &lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query encounter: %w", err)
	}
	enc.Location = toLatLng(lat, lng)

	photos, err := s.queryPhotos(ctx, "WHERE encounter_id = $1 ORDER BY photo_index, taken_at", id)
	if err != nil {
		return nil, err
	}
	enc.Photos = photos
	enc.DerivePersonIDs()
	return &enc, nil
}

// ListEncounters returns all encounters ordered by timestamp.
func (s *Store) ListEncounters(ctx context.Context) ([]store.Encounter, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, taken_at, lat, lng FROM encounters ORDER BY taken_at, id")
	if err != nil {
		return nil, fmt.Errorf("query encounters: %w", err)
	}
	defer rows.Close()

	var encounters []store.Encounter
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var enc store.Encounter
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&enc.ID, &enc.TakenAt, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		enc.Location = toLatLng(lat, lng)
		index[enc.ID] = len(encounters)
		encounters = append(encounters, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encounters: %w", err)
	}

	photos, err := s.queryPhotos(ctx, "WHERE encounter_id IS NOT NULL ORDER BY photo_index, taken_at")
	if err != nil {
		return nil, err
	}
	for _, photo := range photos {
		if i, ok := index[photo.EncounterID]; ok {
			encounters[i].Photos = append(encounters[i].Photos, photo)
		}
	}
	for i := range encounters {
		encounters[i].DerivePersonIDs()
	}
	return encounters, nil
}

// ListBoxes returns every face bounding box across all photos.
func (s *Store) ListBoxes(ctx context.Context) ([]store.FaceBoundingBox, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, photo_id, x, y, width, height, person_id, person_name, confidence, auto_accepted
		FROM face_boxes
		ORDER BY photo_id, box_index
	`)
	if err != nil {
		return nil, fmt.Errorf("query boxes: %w", err)
	}
	defer rows.Close()
	return scanBoxes(rows)
}

// ListUnclusteredPhotos returns photos not yet assigned to any encounter,
// oldest first, which is the order the clusterer expects.
func (s *Store) ListUnclusteredPhotos(ctx context.Context) ([]store.EncounterPhoto, error) {
	return s.queryPhotos(ctx, "WHERE encounter_id IS NULL ORDER BY taken_at, id")
}

// SaveEncounter stores an encounter together with its photos and boxes,
// claiming any previously unclustered photos it contains.
func (s *Store) SaveEncounter(ctx context.Context, enc *store.Encounter) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lat, lng := fromLatLng(enc.Location)
	_, err = tx.ExecContext(ctx,
		"INSERT INTO encounters (id, taken_at, lat, lng) VALUES ($1, $2, $3, $4)",
		enc.ID, enc.TakenAt, lat, lng,
	)
	if err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}

	for i, photo := range enc.Photos {
		pLat, pLng := fromLatLng(photo.Location)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO encounter_photos (id, encounter_id, image_ref, taken_at, lat, lng, photo_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET encounter_id = $2, photo_index = $7
		`, photo.ID, enc.ID, photo.ImageRef, photo.TakenAt, pLat, pLng, i)
		if err != nil {
			return fmt.Errorf("upsert photo: %w", err)
		}
		if err := replaceBoxesTx(ctx, tx, photo.ID, photo.Boxes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit encounter: %w", err)
	}
	return nil
}

// AddPhoto stores a photo that has not been clustered yet.
func (s *Store) AddPhoto(ctx context.Context, photo store.EncounterPhoto) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lat, lng := fromLatLng(photo.Location)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO encounter_photos (id, encounter_id, image_ref, taken_at, lat, lng, photo_index)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
	`, photo.ID, nullableUUID(photo.EncounterID), photo.ImageRef, photo.TakenAt, lat, lng)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	if err := replaceBoxesTx(ctx, tx, photo.ID, photo.Boxes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit photo: %w", err)
	}
	return nil
}

// ReplaceBoxes swaps the box set of a photo after a detection pass.
func (s *Store) ReplaceBoxes(ctx context.Context, photoID uuid.UUID, boxes []store.FaceBoundingBox) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := replaceBoxesTx(ctx, tx, photoID, boxes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit boxes: %w", err)
	}
	return nil
}

// UpdateBoxLabel assigns a person to a box as a single atomic update.
func (s *Store) UpdateBoxLabel(ctx context.Context, boxID, personID uuid.UUID, personName string, confidence float64, autoAccepted bool) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE face_boxes
		SET person_id = $2, person_name = $3, confidence = $4, auto_accepted = $5
		WHERE id = $1
	`, boxID, personID, personName, confidence, autoAccepted)
	if err != nil {
		return fmt.Errorf("update box label: %w", err)
	}
	return checkBoxAffected(result)
}

// ClearBoxLabel removes the person assignment from a box.
func (s *Store) ClearBoxLabel(ctx context.Context, boxID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE face_boxes
		SET person_id = NULL, person_name = '', confidence = 0, auto_accepted = FALSE
		WHERE id = $1
	`, boxID)
	if err != nil {
		return fmt.Errorf("clear box label: %w", err)
	}
	return checkBoxAffected(result)
}

func checkBoxAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("box rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// queryPhotos loads photos matching the given clause with boxes attached.
func (s *Store) queryPhotos(ctx context.Context, clause string, args ...any) ([]store.EncounterPhoto, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, encounter_id, image_ref, taken_at, lat, lng FROM encounter_photos "+clause,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []store.EncounterPhoto
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var photo store.EncounterPhoto
		var encID uuid.NullUUID
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&photo.ID, &encID, &photo.ImageRef, &photo.TakenAt, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photo.EncounterID = encID.UUID
		photo.Location = toLatLng(lat, lng)
		index[photo.ID] = len(photos)
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	if len(photos) == 0 {
		return photos, nil
	}

	boxRows, err := s.pool.Query(ctx, `
		SELECT b.id, b.photo_id, b.x, b.y, b.width, b.height, b.person_id, b.person_name, b.confidence, b.auto_accepted
		FROM face_boxes b
		ORDER BY b.photo_id, b.box_index
	`)
	if err != nil {
		return nil, fmt.Errorf("query boxes: %w", err)
	}
	defer boxRows.Close()

	boxes, err := scanBoxes(boxRows)
	if err != nil {
		return nil, err
	}
	for _, box := range boxes {
		if i, ok := index[box.PhotoID]; ok {
			photos[i].Boxes = append(photos[i].Boxes, box)
		}
	}
	return photos, nil
}

// replaceBoxesTx deletes and reinserts a photo's boxes within a transaction.
func replaceBoxesTx(ctx context.Context, tx *sql.Tx, photoID uuid.UUID, boxes []store.FaceBoundingBox) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM face_boxes WHERE photo_id = $1", photoID); err != nil {
		return fmt.Errorf("delete boxes: %w", err)
	}
	for i, box := range boxes {
		id := box.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO face_boxes (id, photo_id, x, y, width, height, person_id, person_name, confidence, auto_accepted, box_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			id, photoID,
			box.Rect.X, box.Rect.Y, box.Rect.Width, box.Rect.Height,
			nullableUUID(box.PersonID), box.PersonName, box.Confidence, box.AutoAccepted, i,
		)
		if err != nil {
			return fmt.Errorf("insert box: %w", err)
		}
	}
	return nil
}

// scanBoxes reads box rows; NULL person_id maps to uuid.Nil.
func scanBoxes(rows *sql.Rows) ([]store.FaceBoundingBox, error) {
	var out []store.FaceBoundingBox
	for rows.Next() {
		var box store.FaceBoundingBox
		var personID uuid.NullUUID
		var personName sql.NullString
		if err := rows.Scan(
			&box.ID, &box.PhotoID,
			&box.Rect.X, &box.Rect.Y, &box.Rect.Width, &box.Rect.Height,
			&personID, &personName, &box.Confidence, &box.AutoAccepted,
		); err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		box.PersonID = personID.UUID
		box.PersonName = personName.String
		out = append(out, box)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boxes: %w", err)
	}
	return out, nil
}

func toLatLng(lat, lng sql.NullFloat64) *store.LatLng {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &store.LatLng{Lat: lat.Float64, Lng: lng.Float64}
}

func fromLatLng(loc *store.LatLng) (sql.NullFloat64, sql.NullFloat64) {
	if loc == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Lat, Valid: true}, sql.NullFloat64{Float64: loc.Lng, Valid: true}
}
