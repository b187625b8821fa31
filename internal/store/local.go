package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"agenda-medica-server/internal/models"
)

// Persisted key layout: one key per collection snapshot, one counter per
// collection, plus the session slot and the schema version.
const (
	keyPatients       = "patients"
	keyAppointments   = "appointments"
	keyMedicalHistory = "medical_history"
	keyUsers          = "users"
	keySessionUser    = "session_user"

	keyNextPatientID      = "next_patient_id"
	keyNextAppointmentID  = "next_appointment_id"
	keyNextMedicalEntryID = "next_medical_entry_id"
	keyNextUserID         = "next_user_id"

	keySchemaVersion = "schema_version"
)

// schemaVersion is the current snapshot schema. Version 2 normalized the
// chronic-diseases field to a string list.
const schemaVersion = 2

// unknownPatientName is the denormalized name used when an appointment
// references a patient that no longer exists.
const unknownPatientName = "Desconocido"

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	// KeyPrefix namespaces every key this store touches.
	KeyPrefix string
	// AdminPassword seeds the admin account when EnsureAdmin creates it.
	AdminPassword string
	// SimulatedLatency, when non-zero, delays every operation by a fixed
	// amount the way the browser variant faked network latency.
	SimulatedLatency time.Duration
}

// LocalStore implements Store over whole-collection JSON snapshots in a
// KVStore. Every mutation is a read-modify-write of the full snapshot inside
// one optimistic transaction, so an interleaved writer surfaces as
// ErrConflict instead of a silently lost update.
type LocalStore struct {
	kv            KVStore
	logger        *zap.Logger
	prefix        string
	adminPassword string
	latency       time.Duration
}

func NewLocalStore(kv KVStore, logger *zap.Logger, opts LocalOptions) *LocalStore {
	return &LocalStore{
		kv:            kv,
		logger:        logger,
		prefix:        opts.KeyPrefix,
		adminPassword: opts.AdminPassword,
		latency:       opts.SimulatedLatency,
	}
}

func (s *LocalStore) key(name string) string {
	return s.prefix + name
}

func (s *LocalStore) simulateLatency() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

// loadSnapshot reads and decodes a collection snapshot inside a transaction.
// An absent key is persisted as the empty collection and returned as such. A
// snapshot that no longer parses is logged, dropped and replaced by the empty
// collection rather than propagated.
func loadSnapshot[T any](tx KVTx, key string, logger *zap.Logger) ([]T, error) {
	raw, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyMiss) {
			tx.Set(key, "[]")
			return []T{}, nil
		}
		return nil, err
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logger.Warn("discarding corrupt collection snapshot",
			zap.String("key", key),
			zap.Error(err),
		)
		tx.Set(key, "[]")
		return []T{}, nil
	}
	return items, nil
}

func saveSnapshot[T any](tx KVTx, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	tx.Set(key, string(data))
	return nil
}

// nextID returns the next unique id for a collection and persists the
// incremented counter. A missing (or mangled) counter is reseeded from the
// highest id currently in the collection, so a lost counter key never makes
// the allocator re-issue an id that survives in the data.
func nextID(tx KVTx, counterKey string, currentMax int) (int, error) {
	n := 0
	raw, err := tx.Get(counterKey)
	if err != nil && !errors.Is(err, ErrKeyMiss) {
		return 0, err
	}
	if err == nil {
		n, _ = strconv.Atoi(raw)
	}
	if n <= currentMax {
		n = currentMax + 1
	}
	tx.Set(counterKey, strconv.Itoa(n+1))
	return n, nil
}

func maxNumericID[T any](items []T, id func(T) string) int {
	max := 0
	for _, item := range items {
		if n, err := strconv.Atoi(id(item)); err == nil && n > max {
			max = n
		}
	}
	return max
}

func maxUserID(users []models.UserCredential) int {
	max := 0
	for _, u := range users {
		var n int
		if _, err := fmt.Sscanf(u.ID, "user-%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max
}

func sortPatients(items []models.Patient) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].LastName != items[j].LastName {
			return items[i].LastName < items[j].LastName
		}
		return items[i].FirstName < items[j].FirstName
	})
}

func sortAppointments(items []models.Appointment) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})
}

// Medical entries are kept newest-first; the "YYYY-MM-DD" form sorts
// correctly as a plain string.
func sortMedicalEntries(items []models.MedicalEntry) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Date > items[j].Date
	})
}

func patientNameFor(patients []models.Patient, patientID string) string {
	for _, p := range patients {
		if p.ID == patientID {
			return p.FullName()
		}
	}
	return unknownPatientName
}

// --- Patients ---

func (s *LocalStore) ListPatients(ctx context.Context) ([]models.Patient, error) {
	s.simulateLatency()
	var out []models.Patient
	err := s.kv.Update(ctx, []string{s.key(keyPatients)}, func(tx KVTx) error {
		items, err := loadSnapshot[models.Patient](tx, s.key(keyPatients), s.logger)
		if err != nil {
			return err
		}
		sortPatients(items)
		out = items
		return nil
	})
	return out, err
}

func (s *LocalStore) AddPatient(ctx context.Context, p models.Patient) (models.Patient, error) {
	s.simulateLatency()
	collKey, counterKey := s.key(keyPatients), s.key(keyNextPatientID)
	err := s.kv.Update(ctx, []string{collKey, counterKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.Patient](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		n, err := nextID(tx, counterKey, maxNumericID(items, func(p models.Patient) string { return p.ID }))
		if err != nil {
			return err
		}
		p.ID = strconv.Itoa(n)
		items = append(items, p)
		return saveSnapshot(tx, collKey, items)
	})
	return p, err
}

func (s *LocalStore) UpdatePatient(ctx context.Context, id string, p models.Patient) error {
	s.simulateLatency()
	collKey := s.key(keyPatients)
	return s.kv.Update(ctx, []string{collKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.Patient](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		for i := range items {
			if items[i].ID == id {
				p.ID = id
				items[i] = p
				return saveSnapshot(tx, collKey, items)
			}
		}
		// Unknown id: silent no-op.
		return nil
	})
}

// DeletePatient removes the patient and cascades into that patient's medical
// entries and appointments, as the remote backend always did.
func (s *LocalStore) DeletePatient(ctx context.Context, id string) error {
	s.simulateLatency()
	pKey, aKey, mKey := s.key(keyPatients), s.key(keyAppointments), s.key(keyMedicalHistory)
	return s.kv.Update(ctx, []string{pKey, aKey, mKey}, func(tx KVTx) error {
		patients, err := loadSnapshot[models.Patient](tx, pKey, s.logger)
		if err != nil {
			return err
		}
		kept := patients[:0]
		for _, p := range patients {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(patients) {
			return nil
		}
		if err := saveSnapshot(tx, pKey, kept); err != nil {
			return err
		}

		appointments, err := loadSnapshot[models.Appointment](tx, aKey, s.logger)
		if err != nil {
			return err
		}
		keptApps := appointments[:0]
		for _, a := range appointments {
			if a.PatientID != id {
				keptApps = append(keptApps, a)
			}
		}
		if err := saveSnapshot(tx, aKey, keptApps); err != nil {
			return err
		}

		entries, err := loadSnapshot[models.MedicalEntry](tx, mKey, s.logger)
		if err != nil {
			return err
		}
		keptEntries := entries[:0]
		for _, e := range entries {
			if e.PatientID != id {
				keptEntries = append(keptEntries, e)
			}
		}
		return saveSnapshot(tx, mKey, keptEntries)
	})
}

// --- Appointments ---

func (s *LocalStore) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	s.simulateLatency()
	var out []models.Appointment
	err := s.kv.Update(ctx, []string{s.key(keyAppointments)}, func(tx KVTx) error {
		items, err := loadSnapshot[models.Appointment](tx, s.key(keyAppointments), s.logger)
		if err != nil {
			return err
		}
		sortAppointments(items)
		out = items
		return nil
	})
	return out, err
}

func (s *LocalStore) AddAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	s.simulateLatency()
	collKey, counterKey, pKey := s.key(keyAppointments), s.key(keyNextAppointmentID), s.key(keyPatients)
	err := s.kv.Update(ctx, []string{collKey, counterKey, pKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.Appointment](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		patients, err := loadSnapshot[models.Patient](tx, pKey, s.logger)
		if err != nil {
			return err
		}
		n, err := nextID(tx, counterKey, maxNumericID(items, func(a models.Appointment) string { return a.ID }))
		if err != nil {
			return err
		}
		a.ID = strconv.Itoa(n)
		a.PatientName = patientNameFor(patients, a.PatientID)
		items = append(items, a)
		sortAppointments(items)
		return saveSnapshot(tx, collKey, items)
	})
	return a, err
}

// UpdateAppointment replaces the appointment's date, reason and status. The
// patient reference is immutable once created; the denormalized patient name
// is recomputed from the current patient record.
func (s *LocalStore) UpdateAppointment(ctx context.Context, id string, a models.Appointment) error {
	s.simulateLatency()
	collKey, pKey := s.key(keyAppointments), s.key(keyPatients)
	return s.kv.Update(ctx, []string{collKey, pKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.Appointment](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		for i := range items {
			if items[i].ID != id {
				continue
			}
			patients, err := loadSnapshot[models.Patient](tx, pKey, s.logger)
			if err != nil {
				return err
			}
			items[i].Date = a.Date
			items[i].Reason = a.Reason
			items[i].Status = a.Status
			items[i].PatientName = patientNameFor(patients, items[i].PatientID)
			sortAppointments(items)
			return saveSnapshot(tx, collKey, items)
		}
		return nil
	})
}

func (s *LocalStore) DeleteAppointment(ctx context.Context, id string) error {
	s.simulateLatency()
	collKey := s.key(keyAppointments)
	return s.kv.Update(ctx, []string{collKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.Appointment](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		kept := items[:0]
		for _, a := range items {
			if a.ID != id {
				kept = append(kept, a)
			}
		}
		if len(kept) == len(items) {
			return nil
		}
		return saveSnapshot(tx, collKey, kept)
	})
}

// --- Medical entries ---

func (s *LocalStore) ListMedicalEntries(ctx context.Context) ([]models.MedicalEntry, error) {
	s.simulateLatency()
	var out []models.MedicalEntry
	err := s.kv.Update(ctx, []string{s.key(keyMedicalHistory)}, func(tx KVTx) error {
		items, err := loadSnapshot[models.MedicalEntry](tx, s.key(keyMedicalHistory), s.logger)
		if err != nil {
			return err
		}
		sortMedicalEntries(items)
		out = items
		return nil
	})
	return out, err
}

func (s *LocalStore) AddMedicalEntry(ctx context.Context, e models.MedicalEntry) (models.MedicalEntry, error) {
	s.simulateLatency()
	day, err := models.ParseEntryDate(e.Date)
	if err != nil {
		return models.MedicalEntry{}, fmt.Errorf("invalid entry date %q: %w", e.Date, err)
	}
	e.Date = day.Format(models.EntryDateLayout)

	collKey, counterKey := s.key(keyMedicalHistory), s.key(keyNextMedicalEntryID)
	err = s.kv.Update(ctx, []string{collKey, counterKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.MedicalEntry](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		n, err := nextID(tx, counterKey, maxNumericID(items, func(e models.MedicalEntry) string { return e.ID }))
		if err != nil {
			return err
		}
		e.ID = strconv.Itoa(n)
		items = append(items, e)
		sortMedicalEntries(items)
		return saveSnapshot(tx, collKey, items)
	})
	return e, err
}

// UpdateMedicalEntry replaces the entry's date and notes. Like appointments,
// the patient reference stays with the record.
func (s *LocalStore) UpdateMedicalEntry(ctx context.Context, id string, e models.MedicalEntry) error {
	s.simulateLatency()
	day, err := models.ParseEntryDate(e.Date)
	if err != nil {
		return fmt.Errorf("invalid entry date %q: %w", e.Date, err)
	}
	collKey := s.key(keyMedicalHistory)
	return s.kv.Update(ctx, []string{collKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.MedicalEntry](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		for i := range items {
			if items[i].ID == id {
				items[i].Date = day.Format(models.EntryDateLayout)
				items[i].Notes = e.Notes
				sortMedicalEntries(items)
				return saveSnapshot(tx, collKey, items)
			}
		}
		return nil
	})
}

func (s *LocalStore) DeleteMedicalEntry(ctx context.Context, id string) error {
	s.simulateLatency()
	collKey := s.key(keyMedicalHistory)
	return s.kv.Update(ctx, []string{collKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.MedicalEntry](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		kept := items[:0]
		for _, e := range items {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(items) {
			return nil
		}
		return saveSnapshot(tx, collKey, kept)
	})
}

// --- Users ---

func (s *LocalStore) ListUsers(ctx context.Context) ([]models.UserCredential, error) {
	s.simulateLatency()
	var out []models.UserCredential
	err := s.kv.Update(ctx, []string{s.key(keyUsers)}, func(tx KVTx) error {
		items, err := loadSnapshot[models.UserCredential](tx, s.key(keyUsers), s.logger)
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	return out, err
}

func (s *LocalStore) AddUser(ctx context.Context, u models.UserCredential) (models.UserCredential, error) {
	s.simulateLatency()
	collKey, counterKey := s.key(keyUsers), s.key(keyNextUserID)
	err := s.kv.Update(ctx, []string{collKey, counterKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.UserCredential](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		for _, existing := range items {
			if existing.Username == u.Username {
				return ErrUsernameTaken
			}
		}
		n, err := nextID(tx, counterKey, maxUserID(items))
		if err != nil {
			return err
		}
		u.ID = fmt.Sprintf("user-%03d", n)
		items = append([]models.UserCredential{u}, items...)
		return saveSnapshot(tx, collKey, items)
	})
	return u, err
}

// UpdateUser replaces a user's username and password. The admin account
// cannot be renamed, and no other account can take the admin username.
func (s *LocalStore) UpdateUser(ctx context.Context, id string, u models.UserCredential) error {
	s.simulateLatency()
	collKey := s.key(keyUsers)
	return s.kv.Update(ctx, []string{collKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.UserCredential](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		idx := -1
		for i := range items {
			if items[i].ID == id {
				idx = i
			} else if items[i].Username == u.Username {
				return ErrUsernameTaken
			}
		}
		if idx == -1 {
			return nil
		}
		if items[idx].IsAdmin() && u.Username != models.AdminUsername {
			return ErrAdminProtected
		}
		if !items[idx].IsAdmin() && u.Username == models.AdminUsername {
			return ErrUsernameTaken
		}
		items[idx].Username = u.Username
		if u.Password != "" {
			items[idx].Password = u.Password
		}
		return saveSnapshot(tx, collKey, items)
	})
}

func (s *LocalStore) DeleteUser(ctx context.Context, id string) error {
	s.simulateLatency()
	collKey := s.key(keyUsers)
	return s.kv.Update(ctx, []string{collKey}, func(tx KVTx) error {
		items, err := loadSnapshot[models.UserCredential](tx, collKey, s.logger)
		if err != nil {
			return err
		}
		kept := items[:0]
		for _, u := range items {
			if u.ID != id {
				kept = append(kept, u)
				continue
			}
			if u.IsAdmin() {
				return ErrAdminProtected
			}
		}
		if len(kept) == len(items) {
			return nil
		}
		return saveSnapshot(tx, collKey, kept)
	})
}

func (s *LocalStore) GetUserByUsername(ctx context.Context, username string) (*models.UserCredential, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, nil
}

// Authenticate checks the plaintext credential, which is all the local
// variant ever stored.
func (s *LocalStore) Authenticate(ctx context.Context, username, password string) (*models.UserCredential, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Password != password {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *LocalStore) EnsureAdmin(ctx context.Context) error {
	admin, err := s.GetUserByUsername(ctx, models.AdminUsername)
	if err != nil {
		return err
	}
	if admin != nil {
		return nil
	}
	created, err := s.AddUser(ctx, models.UserCredential{
		Username: models.AdminUsername,
		Password: s.adminPassword,
	})
	if err != nil {
		return err
	}
	s.logger.Info("created admin user", zap.String("id", created.ID))
	return nil
}

// --- Session ---

func (s *LocalStore) SaveSession(ctx context.Context, u models.UserCredential) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key(keySessionUser), string(data))
}

func (s *LocalStore) Session(ctx context.Context) (*models.UserCredential, error) {
	raw, err := s.kv.Get(ctx, s.key(keySessionUser))
	if err != nil {
		if errors.Is(err, ErrKeyMiss) {
			return nil, nil
		}
		return nil, err
	}
	var u models.UserCredential
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.logger.Warn("clearing corrupt session record", zap.Error(err))
		return nil, s.ClearSession(ctx)
	}
	return &u, nil
}

func (s *LocalStore) ClearSession(ctx context.Context) error {
	return s.kv.Del(ctx, s.key(keySessionUser))
}
