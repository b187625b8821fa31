package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"agenda-medica-server/internal/models"
)

// SeedDemoData loads the demo data set into an empty local store. Collections
// that already have a snapshot are left untouched, so a restart never
// duplicates or clobbers real records.
func (s *LocalStore) SeedDemoData(ctx context.Context) error {
	pKey := s.key(keyPatients)
	if _, err := s.kv.Get(ctx, pKey); err == nil {
		return nil
	} else if !errors.Is(err, ErrKeyMiss) {
		return err
	}

	patients := []models.Patient{
		{FirstName: "Ana", LastName: "Pérez", DNI: "12345678", Age: 34, Gender: models.GenderFemale,
			BloodType: models.BloodAPositive, Address: "Calle Falsa 123", Phone: "555-1234", Email: "ana.perez@example.com"},
		{FirstName: "Luis", LastName: "García", DNI: "23456789", Age: 45, Gender: models.GenderMale,
			BloodType: models.BloodOPositive, Address: "Avenida Siempreviva 742", Phone: "555-5678", Email: "luis.garcia@example.com"},
		{FirstName: "María", LastName: "Rodriguez", DNI: "34567890", Age: 28, Gender: models.GenderFemale,
			BloodType: models.BloodUnknown, Address: "Pasaje Seguro 45", Phone: "555-8765", Email: "maria.rodriguez@example.com"},
	}
	ids := make([]string, 0, len(patients))
	for _, p := range patients {
		created, err := s.AddPatient(ctx, p)
		if err != nil {
			return err
		}
		ids = append(ids, created.ID)
	}

	year := time.Now().Year() + 1
	appointments := []models.Appointment{
		{PatientID: ids[0], Date: time.Date(year, 7, 18, 10, 0, 0, 0, time.Local), Reason: "Consulta General", Status: models.StatusScheduled},
		{PatientID: ids[1], Date: time.Date(year, 7, 18, 11, 30, 0, 0, time.Local), Reason: "Revisión Dental", Status: models.StatusScheduled},
		{PatientID: ids[2], Date: time.Date(year, 7, 20, 9, 0, 0, 0, time.Local), Reason: "Vacunación", Status: models.StatusScheduled},
		{PatientID: ids[0], Date: time.Date(year, 7, 25, 14, 0, 0, 0, time.Local), Reason: "Seguimiento", Status: models.StatusScheduled},
	}
	for _, a := range appointments {
		if _, err := s.AddAppointment(ctx, a); err != nil {
			return err
		}
	}

	entries := []models.MedicalEntry{
		{PatientID: ids[0], Date: "2023-01-15", Notes: "Consulta general. Paciente refiere dolor de cabeza ocasional. Se recomienda descanso e hidratación."},
		{PatientID: ids[0], Date: "2023-06-20", Notes: "Chequeo anual. Todo en orden. Próxima revisión en un año."},
		{PatientID: ids[1], Date: "2023-03-10", Notes: "Revisión dental. Limpieza realizada. Se detecta caries leve en molar superior derecho."},
	}
	for _, e := range entries {
		if _, err := s.AddMedicalEntry(ctx, e); err != nil {
			return err
		}
	}

	s.logger.Info("seeded demo data",
		zap.Int("patients", len(patients)),
		zap.Int("appointments", len(appointments)),
		zap.Int("medicalEntries", len(entries)),
	)
	return nil
}
