package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"agenda-medica-server/internal/models"
)

// patientShim captures the chronic-diseases field raw so both historical
// shapes (a bare string in old snapshots, a string list since) decode.
type patientShim struct {
	models.Patient
	ChronicDiseases json.RawMessage `json:"chronicDiseases,omitempty"`
}

// Migrate brings persisted snapshots up to the current schema version. It is
// a single explicit pass, run once at startup and recorded under the
// schema-version key; reads never coerce shapes on the fly.
//
// Version 1 -> 2: chronic diseases were at times persisted as one plain
// string instead of a list. Normalize every patient to []string.
func (s *LocalStore) Migrate(ctx context.Context) error {
	verKey := s.key(keySchemaVersion)
	raw, err := s.kv.Get(ctx, verKey)
	if err != nil && !errors.Is(err, ErrKeyMiss) {
		return err
	}
	if v, _ := strconv.Atoi(raw); v >= schemaVersion {
		return nil
	}

	pKey := s.key(keyPatients)
	migrated := 0
	err = s.kv.Update(ctx, []string{pKey, verKey}, func(tx KVTx) error {
		migrated = 0
		snapshot, err := tx.Get(pKey)
		if err != nil {
			if errors.Is(err, ErrKeyMiss) {
				tx.Set(verKey, strconv.Itoa(schemaVersion))
				return nil
			}
			return err
		}
		var shims []patientShim
		if err := json.Unmarshal([]byte(snapshot), &shims); err != nil {
			s.logger.Warn("patients snapshot unreadable during migration, leaving as-is", zap.Error(err))
			tx.Set(verKey, strconv.Itoa(schemaVersion))
			return nil
		}
		patients := make([]models.Patient, len(shims))
		for i, shim := range shims {
			patients[i] = shim.Patient
			diseases, ok := normalizeDiseases(shim.ChronicDiseases)
			if !ok {
				migrated++
			}
			patients[i].ChronicDiseases = diseases
		}
		if err := saveSnapshot(tx, pKey, patients); err != nil {
			return err
		}
		tx.Set(verKey, strconv.Itoa(schemaVersion))
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("snapshot schema migrated",
		zap.Int("version", schemaVersion),
		zap.Int("patientsNormalized", migrated),
	)
	return nil
}

// normalizeDiseases returns the list form of the field and whether it was
// already in list form.
func normalizeDiseases(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}, false
	}
	return nil, false
}
