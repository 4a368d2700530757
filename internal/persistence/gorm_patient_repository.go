package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"oct-review-service/internal/config"
	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/domain/repositories"
)

var _ repositories.PatientRepositoryContract = (*GormPatientRepository)(nil)

// GormPatientRepository stores patients and visits in two PostgreSQL tables.
// History order is kept by Visit.Seq, highest first.
type GormPatientRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenPostgres opens the database through lib/pq and hands the pool to gorm.
func OpenPostgres(cfg config.DatabaseConfig) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init gorm: %w", err)
	}
	return db, nil
}

// NewGormPatientRepository migrates the schema and installs seeds into an empty table.
func NewGormPatientRepository(ctx context.Context, db *gorm.DB, seeds []*entities.Patient, logger *zap.Logger) (*GormPatientRepository, error) {
	if err := db.WithContext(ctx).AutoMigrate(&entities.Patient{}, &entities.Visit{}); err != nil {
		return nil, fmt.Errorf("migrate patient schema: %w", err)
	}
	r := &GormPatientRepository{db: db, logger: logger}

	var count int64
	if err := db.WithContext(ctx).Model(&entities.Patient{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if count == 0 && len(seeds) > 0 {
		// seeds are listed newest first; insert oldest first so created_at ordering matches
		for i := len(seeds) - 1; i >= 0; i-- {
			if err := db.WithContext(ctx).Create(seeds[i].Clone()).Error; err != nil {
				return nil, fmt.Errorf("seed patient %s: %w", seeds[i].ID, err)
			}
		}
		logger.Info("patient table seeded", zap.Int("patients", len(seeds)))
	}
	return r, nil
}

func historyDesc(db *gorm.DB) *gorm.DB {
	return db.Order("seq DESC")
}

func (r *GormPatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	c := patient.Clone()
	c.History = nil
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *GormPatientRepository) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	var p entities.Patient
	err := r.db.WithContext(ctx).Preload("History", historyDesc).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.History == nil {
		p.History = []entities.Visit{}
	}
	return &p, nil
}

func (r *GormPatientRepository) Update(ctx context.Context, patient *entities.Patient) error {
	res := r.db.WithContext(ctx).Model(&entities.Patient{}).Where("id = ?", patient.ID).Updates(map[string]interface{}{
		"name":   patient.Name,
		"age":    patient.Age,
		"gender": patient.Gender,
		"phone":  patient.Phone,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *GormPatientRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("patient_id = ?", id).Delete(&entities.Visit{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&entities.Patient{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repositories.ErrNotFound
		}
		return nil
	})
}

func (r *GormPatientRepository) ListAll(ctx context.Context) ([]*entities.Patient, error) {
	var patients []*entities.Patient
	err := r.db.WithContext(ctx).
		Preload("History", historyDesc).
		Order("created_at DESC").
		Find(&patients).Error
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		if p.History == nil {
			p.History = []entities.Visit{}
		}
	}
	return patients, nil
}

func (r *GormPatientRepository) AppendVisit(ctx context.Context, patientID string, visit entities.Visit) (bool, error) {
	found := true
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p entities.Patient
		if err := tx.Select("id").First(&p, "id = ?", patientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				found = false
				return nil
			}
			return err
		}
		var maxSeq sql.NullInt64
		if err := tx.Model(&entities.Visit{}).Where("patient_id = ?", patientID).
			Select("MAX(seq)").Scan(&maxSeq).Error; err != nil {
			return err
		}
		visit.PatientID = patientID
		visit.Seq = maxSeq.Int64 + 1
		if err := tx.Create(&visit).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Patient{}).Where("id = ?", patientID).
			Update("last_visit", visit.Date).Error
	})
	if err != nil {
		r.logger.Error("append visit failed", zap.String("patient_id", patientID), zap.Error(err))
		return false, err
	}
	return found, nil
}
