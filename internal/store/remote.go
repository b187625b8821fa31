package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"agenda-medica-server/internal/models"
)

// BaseRow contains common columns for all tables. Ids are store-generated
// UUIDs assigned on create, except where a row pins its own id (the admin
// user).
type BaseRow struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (base *BaseRow) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

type patientRow struct {
	BaseRow
	FirstName        string `gorm:"size:100;not null"`
	LastName         string `gorm:"size:100;not null"`
	DNI              string `gorm:"column:dni;size:8;not null"`
	Age              int
	Gender           string `gorm:"size:20"`
	BloodType        string `gorm:"size:20"`
	Address          string `gorm:"size:255"`
	Phone            string `gorm:"size:50"`
	SecondaryContact string `gorm:"size:50"`
	Email            string `gorm:"size:255"`
	SocialWork       string `gorm:"size:100"`
	ChronicDiseases  string `gorm:"type:text"` // JSON-encoded string list
}

func (patientRow) TableName() string { return "patients" }

type appointmentRow struct {
	BaseRow
	PatientID   string    `gorm:"size:36;index"`
	PatientName string    `gorm:"size:200"`
	Date        time.Time `gorm:"index"`
	Reason      string    `gorm:"size:255"`
	Status      string    `gorm:"size:20"`
}

func (appointmentRow) TableName() string { return "appointments" }

type medicalEntryRow struct {
	BaseRow
	PatientID string    `gorm:"size:36;index"`
	Date      time.Time `gorm:"index"`
	Notes     string    `gorm:"type:text"`
}

func (medicalEntryRow) TableName() string { return "medical_entries" }

// userRow stores only the username and credential hash, never plaintext.
type userRow struct {
	BaseRow
	Username     string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"size:255;not null"`
}

func (userRow) TableName() string { return "users" }

// OpenRemoteDB connects to the MySQL database and migrates the schema.
func OpenRemoteDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the remote tables. Split out of OpenRemoteDB
// so tests can run the store against another gorm driver.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&patientRow{},
		&appointmentRow{},
		&medicalEntryRow{},
		&userRow{},
	)
}

// RemoteStore implements Store against the networked database. Unlike the
// local backend it never masks storage errors; they propagate to the caller.
type RemoteStore struct {
	db            *gorm.DB
	logger        *zap.Logger
	adminPassword string
}

func NewRemoteStore(db *gorm.DB, logger *zap.Logger, adminPassword string) *RemoteStore {
	return &RemoteStore{db: db, logger: logger, adminPassword: adminPassword}
}

// --- row <-> domain coercion ---

func (r patientRow) toDomain() models.Patient {
	var diseases []string
	if r.ChronicDiseases != "" {
		// Tolerate the legacy single-string shape alongside the list form.
		if err := json.Unmarshal([]byte(r.ChronicDiseases), &diseases); err != nil {
			diseases = []string{r.ChronicDiseases}
		}
	}
	return models.Patient{
		ID:               r.ID,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		DNI:              r.DNI,
		Age:              r.Age,
		Gender:           models.Gender(r.Gender),
		BloodType:        models.BloodType(r.BloodType),
		Address:          r.Address,
		Phone:            r.Phone,
		SecondaryContact: r.SecondaryContact,
		Email:            r.Email,
		SocialWork:       r.SocialWork,
		ChronicDiseases:  diseases,
	}
}

func (r *patientRow) fromDomain(p models.Patient) error {
	r.FirstName = p.FirstName
	r.LastName = p.LastName
	r.DNI = p.DNI
	r.Age = p.Age
	r.Gender = string(p.Gender)
	r.BloodType = string(p.BloodType)
	r.Address = p.Address
	r.Phone = p.Phone
	r.SecondaryContact = p.SecondaryContact
	r.Email = p.Email
	r.SocialWork = p.SocialWork
	r.ChronicDiseases = ""
	if len(p.ChronicDiseases) > 0 {
		data, err := json.Marshal(p.ChronicDiseases)
		if err != nil {
			return err
		}
		r.ChronicDiseases = string(data)
	}
	return nil
}

func (r appointmentRow) toDomain() models.Appointment {
	return models.Appointment{
		ID:          r.ID,
		PatientID:   r.PatientID,
		PatientName: r.PatientName,
		Date:        r.Date,
		Reason:      r.Reason,
		Status:      models.AppointmentStatus(r.Status),
	}
}

func (r medicalEntryRow) toDomain() models.MedicalEntry {
	return models.MedicalEntry{
		ID:        r.ID,
		PatientID: r.PatientID,
		Date:      r.Date.Format(models.EntryDateLayout),
		Notes:     r.Notes,
	}
}

// --- Patients ---

func (s *RemoteStore) ListPatients(ctx context.Context) ([]models.Patient, error) {
	var rows []patientRow
	if err := s.db.WithContext(ctx).Order("last_name, first_name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch patients: %w", err)
	}
	patients := make([]models.Patient, len(rows))
	for i, r := range rows {
		patients[i] = r.toDomain()
	}
	return patients, nil
}

func (s *RemoteStore) AddPatient(ctx context.Context, p models.Patient) (models.Patient, error) {
	var row patientRow
	if err := row.fromDomain(p); err != nil {
		return models.Patient{}, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Patient{}, fmt.Errorf("create patient: %w", err)
	}
	return row.toDomain(), nil
}

func (s *RemoteStore) UpdatePatient(ctx context.Context, id string, p models.Patient) error {
	var row patientRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("fetch patient: %w", err)
	}
	if err := row.fromDomain(p); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

// DeletePatient removes the patient together with every medical entry and
// appointment referencing it, in one all-or-nothing transaction.
func (s *RemoteStore) DeletePatient(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("patient_id = ?", id).Delete(&medicalEntryRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", id).Delete(&appointmentRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&patientRow{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

// --- Appointments ---

func (s *RemoteStore) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	var rows []appointmentRow
	if err := s.db.WithContext(ctx).Order("date asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch appointments: %w", err)
	}
	appointments := make([]models.Appointment, len(rows))
	for i, r := range rows {
		appointments[i] = r.toDomain()
	}
	return appointments, nil
}

func (s *RemoteStore) patientNameByID(ctx context.Context, patientID string) (string, error) {
	var row patientRow
	err := s.db.WithContext(ctx).Select("first_name", "last_name").First(&row, "id = ?", patientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return unknownPatientName, nil
		}
		return "", err
	}
	return row.FirstName + " " + row.LastName, nil
}

func (s *RemoteStore) AddAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	name, err := s.patientNameByID(ctx, a.PatientID)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("resolve patient name: %w", err)
	}
	row := appointmentRow{
		PatientID:   a.PatientID,
		PatientName: name,
		Date:        a.Date,
		Reason:      a.Reason,
		Status:      string(a.Status),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	return row.toDomain(), nil
}

func (s *RemoteStore) UpdateAppointment(ctx context.Context, id string, a models.Appointment) error {
	var row appointmentRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("fetch appointment: %w", err)
	}
	// The patient reference never changes; the denormalized name is refreshed
	// from the patient it already points at.
	name, err := s.patientNameByID(ctx, row.PatientID)
	if err != nil {
		return fmt.Errorf("resolve patient name: %w", err)
	}
	row.PatientName = name
	row.Date = a.Date
	row.Reason = a.Reason
	row.Status = string(a.Status)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (s *RemoteStore) DeleteAppointment(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&appointmentRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// --- Medical entries ---

func (s *RemoteStore) ListMedicalEntries(ctx context.Context) ([]models.MedicalEntry, error) {
	var rows []medicalEntryRow
	if err := s.db.WithContext(ctx).Order("date desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch medical entries: %w", err)
	}
	entries := make([]models.MedicalEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.toDomain()
	}
	return entries, nil
}

func (s *RemoteStore) AddMedicalEntry(ctx context.Context, e models.MedicalEntry) (models.MedicalEntry, error) {
	day, err := models.ParseEntryDate(e.Date)
	if err != nil {
		return models.MedicalEntry{}, fmt.Errorf("invalid entry date %q: %w", e.Date, err)
	}
	row := medicalEntryRow{
		PatientID: e.PatientID,
		// Midnight UTC keeps the calendar day stable across zones.
		Date:  time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		Notes: e.Notes,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.MedicalEntry{}, fmt.Errorf("create medical entry: %w", err)
	}
	return row.toDomain(), nil
}

func (s *RemoteStore) UpdateMedicalEntry(ctx context.Context, id string, e models.MedicalEntry) error {
	day, err := models.ParseEntryDate(e.Date)
	if err != nil {
		return fmt.Errorf("invalid entry date %q: %w", e.Date, err)
	}
	var row medicalEntryRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("fetch medical entry: %w", err)
	}
	row.Date = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	row.Notes = e.Notes
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update medical entry: %w", err)
	}
	return nil
}

func (s *RemoteStore) DeleteMedicalEntry(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&medicalEntryRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete medical entry: %w", err)
	}
	return nil
}

// --- Users ---

func (s *RemoteStore) ListUsers(ctx context.Context) ([]models.UserCredential, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	users := make([]models.UserCredential, len(rows))
	for i, r := range rows {
		users[i] = models.UserCredential{ID: r.ID, Username: r.Username}
	}
	return users, nil
}

func (s *RemoteStore) AddUser(ctx context.Context, u models.UserCredential) (models.UserCredential, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
		return models.UserCredential{}, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return models.UserCredential{}, ErrUsernameTaken
	}

	if err := u.SetPasswordHash(u.Password); err != nil {
		return models.UserCredential{}, err
	}
	row := userRow{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
	}
	// The admin account is pinned to a well-known id so it can be found by
	// direct lookup without a query.
	if u.Username == models.AdminUsername {
		row.ID = models.AdminID
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.UserCredential{}, fmt.Errorf("create user: %w", err)
	}
	return models.UserCredential{ID: row.ID, Username: row.Username}, nil
}

// UpdateUser changes a user's username and, when a new password is supplied,
// rehashes the credential. Any attempt to touch the admin account's username
// or credential through this path is refused outright rather than partially
// applied.
func (s *RemoteStore) UpdateUser(ctx context.Context, id string, u models.UserCredential) error {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("fetch user: %w", err)
	}
	if row.Username == models.AdminUsername {
		if u.Username != models.AdminUsername || u.Password != "" {
			return ErrAdminProtected
		}
		return nil
	}
	if u.Username == models.AdminUsername {
		return ErrUsernameTaken
	}
	if u.Username != row.Username {
		var count int64
		if err := s.db.WithContext(ctx).Model(&userRow{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		row.Username = u.Username
	}
	if u.Password != "" {
		creds := models.UserCredential{}
		if err := creds.SetPasswordHash(u.Password); err != nil {
			return err
		}
		row.PasswordHash = creds.PasswordHash
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *RemoteStore) DeleteUser(ctx context.Context, id string) error {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("fetch user: %w", err)
	}
	if row.Username == models.AdminUsername {
		return ErrAdminProtected
	}
	if err := s.db.WithContext(ctx).Delete(&row).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *RemoteStore) GetUserByUsername(ctx context.Context, username string) (*models.UserCredential, error) {
	// Admin first by its fixed id, no query needed.
	if username == models.AdminUsername {
		var row userRow
		err := s.db.WithContext(ctx).First(&row, "id = ?", models.AdminID).Error
		if err == nil && row.Username == models.AdminUsername {
			return &models.UserCredential{ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash}, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetch admin user: %w", err)
		}
	}

	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &models.UserCredential{ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash}, nil
}

func (s *RemoteStore) Authenticate(ctx context.Context, username, password string) (*models.UserCredential, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.CheckPasswordHash(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAdmin guarantees the admin account exists under its fixed id,
// creating it with the configured default password when missing. An admin
// row that somehow lost its hash gets the default credential restored.
func (s *RemoteStore) EnsureAdmin(ctx context.Context) error {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", models.AdminID).Error
	if err == nil {
		if row.PasswordHash == "" {
			s.logger.Warn("admin user has no credential hash, restoring default")
			creds := models.UserCredential{}
			if err := creds.SetPasswordHash(s.adminPassword); err != nil {
				return err
			}
			row.PasswordHash = creds.PasswordHash
			return s.db.WithContext(ctx).Save(&row).Error
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("fetch admin user: %w", err)
	}

	// An admin row created under a store-generated id still counts.
	var count int64
	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("username = ?", models.AdminUsername).Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	creds := models.UserCredential{}
	if err := creds.SetPasswordHash(s.adminPassword); err != nil {
		return err
	}
	row = userRow{
		BaseRow:      BaseRow{ID: models.AdminID},
		Username:     models.AdminUsername,
		PasswordHash: creds.PasswordHash,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	s.logger.Info("created admin user", zap.String("id", row.ID))
	return nil
}
