package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agenda-medica-server/internal/models"
	"agenda-medica-server/internal/store"
)

const testPrefix = "test:"

func newLocalStore(t *testing.T) (*store.LocalStore, *store.MemoryKV) {
	t.Helper()
	kv := store.NewMemoryKV()
	s := store.NewLocalStore(kv, zap.NewNop(), store.LocalOptions{
		KeyPrefix:     testPrefix,
		AdminPassword: "password",
	})
	return s, kv
}

func anaPerez() models.Patient {
	return models.Patient{
		FirstName: "Ana",
		LastName:  "Pérez",
		DNI:       "12345678",
		Age:       34,
		Gender:    models.GenderFemale,
		BloodType: models.BloodAPositive,
		Address:   "Calle Falsa 123",
		Phone:     "555-1234",
		Email:     "ana.perez@example.com",
	}
}

func TestAddPatientFirstIDIsOne(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	created, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)
	require.Equal(t, "1", created.ID)

	patients, err := s.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	require.Equal(t, "1", patients[0].ID)
	require.Equal(t, "Ana", patients[0].FirstName)
}

func TestPatientIDsNeverRepeat(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		p := anaPerez()
		p.FirstName = fmt.Sprintf("Paciente%d", i)
		created, err := s.AddPatient(ctx, p)
		require.NoError(t, err)
		require.False(t, seen[created.ID], "id %s issued twice", created.ID)
		seen[created.ID] = true
	}
}

func TestPatientIDsUniqueAfterCounterLoss(t *testing.T) {
	s, kv := newLocalStore(t)
	ctx := context.Background()

	first, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)
	second, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	// Losing the counter key must not re-issue ids that survive in the data.
	require.NoError(t, kv.Del(ctx, testPrefix+"next_patient_id"))

	third, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)
	require.NotEqual(t, second.ID, third.ID)
	require.Equal(t, "3", third.ID)
}

func TestAppointmentsSortedAscending(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	patient, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	later := time.Date(2024, 7, 25, 14, 0, 0, 0, time.Local)
	earlier := time.Date(2024, 7, 18, 10, 0, 0, 0, time.Local)

	_, err = s.AddAppointment(ctx, models.Appointment{PatientID: patient.ID, Date: later, Reason: "Seguimiento", Status: models.StatusScheduled})
	require.NoError(t, err)
	_, err = s.AddAppointment(ctx, models.Appointment{PatientID: patient.ID, Date: earlier, Reason: "Consulta General", Status: models.StatusScheduled})
	require.NoError(t, err)

	appointments, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appointments, 2)
	require.True(t, appointments[0].Date.Equal(earlier))
	require.True(t, appointments[1].Date.Equal(later))
}

func TestAppointmentDateRoundTrip(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	patient, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	date := time.Date(2024, 7, 25, 14, 0, 0, 0, time.Local)
	created, err := s.AddAppointment(ctx, models.Appointment{PatientID: patient.ID, Date: date, Reason: "Seguimiento", Status: models.StatusScheduled})
	require.NoError(t, err)

	appointments, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	require.Equal(t, created.ID, appointments[0].ID)
	require.True(t, date.Equal(appointments[0].Date), "date-time must survive the snapshot round-trip")
}

func TestAppointmentDenormalizedName(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	patient, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	created, err := s.AddAppointment(ctx, models.Appointment{
		PatientID: patient.ID,
		Date:      time.Date(2024, 7, 18, 10, 0, 0, 0, time.Local),
		Reason:    "Consulta General",
		Status:    models.StatusScheduled,
	})
	require.NoError(t, err)
	require.Equal(t, "Ana Pérez", created.PatientName)

	// An appointment for an unknown patient still gets a display name.
	orphan, err := s.AddAppointment(ctx, models.Appointment{
		PatientID: "999",
		Date:      time.Date(2024, 7, 19, 10, 0, 0, 0, time.Local),
		Status:    models.StatusScheduled,
	})
	require.NoError(t, err)
	require.Equal(t, "Desconocido", orphan.PatientName)
}

func TestUpdateAppointmentKeepsPatientAndRefreshesName(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	patient, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	date := time.Date(2024, 7, 18, 10, 0, 0, 0, time.Local)
	created, err := s.AddAppointment(ctx, models.Appointment{PatientID: patient.ID, Date: date, Reason: "Consulta General", Status: models.StatusScheduled})
	require.NoError(t, err)

	// Rename the patient, then touch the appointment: the denormalized name
	// must be recomputed on the mutation.
	renamed := patient
	renamed.FirstName = "Anabel"
	require.NoError(t, s.UpdatePatient(ctx, patient.ID, renamed))

	err = s.UpdateAppointment(ctx, created.ID, models.Appointment{
		PatientID: "other-patient", // must be ignored
		Date:      date,
		Reason:    "Consulta General",
		Status:    models.StatusCancelled,
	})
	require.NoError(t, err)

	appointments, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	require.Equal(t, patient.ID, appointments[0].PatientID)
	require.Equal(t, "Anabel Pérez", appointments[0].PatientName)
	require.Equal(t, models.StatusCancelled, appointments[0].Status)
	require.True(t, date.Equal(appointments[0].Date))
}

func TestUpdateMissingAppointmentIsNoop(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	err := s.UpdateAppointment(ctx, "42", models.Appointment{Date: time.Now(), Status: models.StatusCancelled})
	require.NoError(t, err)

	appointments, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Empty(t, appointments)
}

func TestMedicalEntriesNewestFirst(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	patient, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	_, err = s.AddMedicalEntry(ctx, models.MedicalEntry{PatientID: patient.ID, Date: "2023-01-15", Notes: "Consulta general, sin hallazgos."})
	require.NoError(t, err)
	_, err = s.AddMedicalEntry(ctx, models.MedicalEntry{PatientID: patient.ID, Date: "2023-06-20", Notes: "Chequeo anual, todo en orden."})
	require.NoError(t, err)

	entries, err := s.ListMedicalEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "2023-06-20", entries[0].Date)
	require.Equal(t, "2023-01-15", entries[1].Date)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	patient, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	require.NoError(t, s.DeletePatient(ctx, patient.ID))
	// Second delete of the same id: no error, nothing changes.
	require.NoError(t, s.DeletePatient(ctx, patient.ID))

	patients, err := s.ListPatients(ctx)
	require.NoError(t, err)
	require.Empty(t, patients)
}

func TestDeletePatientCascades(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	doomed, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)
	other := anaPerez()
	other.FirstName = "Luis"
	other.LastName = "García"
	survivor, err := s.AddPatient(ctx, other)
	require.NoError(t, err)

	for _, day := range []string{"2023-01-15", "2023-06-20"} {
		_, err = s.AddMedicalEntry(ctx, models.MedicalEntry{PatientID: doomed.ID, Date: day, Notes: "Notas de control del paciente."})
		require.NoError(t, err)
	}
	_, err = s.AddMedicalEntry(ctx, models.MedicalEntry{PatientID: survivor.ID, Date: "2023-03-10", Notes: "Revisión dental sin novedades."})
	require.NoError(t, err)

	_, err = s.AddAppointment(ctx, models.Appointment{PatientID: doomed.ID, Date: time.Now(), Status: models.StatusScheduled})
	require.NoError(t, err)
	_, err = s.AddAppointment(ctx, models.Appointment{PatientID: survivor.ID, Date: time.Now(), Status: models.StatusScheduled})
	require.NoError(t, err)

	require.NoError(t, s.DeletePatient(ctx, doomed.ID))

	entries, err := s.ListMedicalEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, survivor.ID, entries[0].PatientID)

	appointments, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	require.Equal(t, survivor.ID, appointments[0].PatientID)
}

func TestUserIDFormat(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	first, err := s.AddUser(ctx, models.UserCredential{Username: "recepcion", Password: "clave1"})
	require.NoError(t, err)
	require.Equal(t, "user-001", first.ID)

	second, err := s.AddUser(ctx, models.UserCredential{Username: "doctora", Password: "clave2"})
	require.NoError(t, err)
	require.Equal(t, "user-002", second.ID)
}

func TestDuplicateUsernameRejected(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	_, err := s.AddUser(ctx, models.UserCredential{Username: "recepcion", Password: "clave1"})
	require.NoError(t, err)
	_, err = s.AddUser(ctx, models.UserCredential{Username: "recepcion", Password: "clave2"})
	require.ErrorIs(t, err, store.ErrUsernameTaken)
}

func TestAdminIsProtected(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureAdmin(ctx))
	admin, err := s.GetUserByUsername(ctx, models.AdminUsername)
	require.NoError(t, err)
	require.NotNil(t, admin)

	require.ErrorIs(t, s.DeleteUser(ctx, admin.ID), store.ErrAdminProtected)

	// Admin keeps its username; nobody else can take it.
	err = s.UpdateUser(ctx, admin.ID, models.UserCredential{Username: "jefe"})
	require.ErrorIs(t, err, store.ErrAdminProtected)

	other, err := s.AddUser(ctx, models.UserCredential{Username: "recepcion", Password: "clave1"})
	require.NoError(t, err)
	err = s.UpdateUser(ctx, other.ID, models.UserCredential{Username: models.AdminUsername})
	require.ErrorIs(t, err, store.ErrUsernameTaken)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureAdmin(ctx))
	require.NoError(t, s.EnsureAdmin(ctx))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestAuthenticate(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureAdmin(ctx))

	user, err := s.Authenticate(ctx, models.AdminUsername, "password")
	require.NoError(t, err)
	require.Equal(t, models.AdminUsername, user.Username)

	_, err = s.Authenticate(ctx, models.AdminUsername, "wrong")
	require.ErrorIs(t, err, store.ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "nobody", "password")
	require.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	current, err := s.Session(ctx)
	require.NoError(t, err)
	require.Nil(t, current)

	user := models.UserCredential{ID: "user-001", Username: models.AdminUsername, Password: "password"}
	require.NoError(t, s.SaveSession(ctx, user))

	current, err = s.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, "user-001", current.ID)

	require.NoError(t, s.ClearSession(ctx))
	current, err = s.Session(ctx)
	require.NoError(t, err)
	require.Nil(t, current)
}

func TestCorruptSnapshotFallsBackToEmpty(t *testing.T) {
	s, kv := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, testPrefix+"patients", "{not json"))

	patients, err := s.ListPatients(ctx)
	require.NoError(t, err)
	require.Empty(t, patients)

	// The corrupt snapshot was replaced, so the next add starts clean.
	created, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)
	require.Equal(t, "1", created.ID)
}

func TestMigrateNormalizesChronicDiseases(t *testing.T) {
	s, kv := newLocalStore(t)
	ctx := context.Background()

	legacy := `[{"id":"1","firstName":"Ana","lastName":"Pérez","chronicDiseases":"asma"},` +
		`{"id":"2","firstName":"Luis","lastName":"García","chronicDiseases":["diabetes","hipertensión"]}]`
	require.NoError(t, kv.Set(ctx, testPrefix+"patients", legacy))

	require.NoError(t, s.Migrate(ctx))

	patients, err := s.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	for _, p := range patients {
		switch p.ID {
		case "1":
			require.Equal(t, []string{"asma"}, p.ChronicDiseases)
		case "2":
			require.Equal(t, []string{"diabetes", "hipertensión"}, p.ChronicDiseases)
		}
	}

	// Once recorded, the pass does not run again.
	version, err := kv.Get(ctx, testPrefix+"schema_version")
	require.NoError(t, err)
	require.Equal(t, "2", version)
	require.NoError(t, s.Migrate(ctx))
}

// contendedKV simulates another writer touching the watched keys: once
// tripped, every transaction loses the optimistic race.
type contendedKV struct {
	*store.MemoryKV
	contended bool
}

func (k *contendedKV) Update(ctx context.Context, keys []string, fn func(tx store.KVTx) error) error {
	if k.contended {
		return store.ErrConflict
	}
	return k.MemoryKV.Update(ctx, keys, fn)
}

func TestMutationsSurfaceLostWrites(t *testing.T) {
	kv := &contendedKV{MemoryKV: store.NewMemoryKV()}
	s := store.NewLocalStore(kv, zap.NewNop(), store.LocalOptions{KeyPrefix: testPrefix})
	ctx := context.Background()

	created, err := s.AddPatient(ctx, anaPerez())
	require.NoError(t, err)

	kv.contended = true
	_, err = s.AddPatient(ctx, anaPerez())
	require.ErrorIs(t, err, store.ErrConflict)
	require.ErrorIs(t, s.UpdatePatient(ctx, created.ID, created), store.ErrConflict)
	require.ErrorIs(t, s.DeletePatient(ctx, created.ID), store.ErrConflict)

	// Nothing was applied by the losing writes.
	kv.contended = false
	patients, err := s.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	require.Equal(t, created.ID, patients[0].ID)
}

func TestSeedDemoDataOnlyOnEmptyStore(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedDemoData(ctx))

	patients, err := s.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 3)

	appointments, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appointments, 4)
	for i := 1; i < len(appointments); i++ {
		require.False(t, appointments[i].Date.Before(appointments[i-1].Date))
	}

	// A second run must not duplicate anything.
	require.NoError(t, s.SeedDemoData(ctx))
	patients, err = s.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 3)
}
