package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/certificate"
)

type certificateRepository struct {
	db *certificateTable
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db.certificates}
}

func (repo *certificateRepository) GetCertificate(_ context.Context, studentID, classID string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.table[key(studentID, classID)]; ok {
		return c, nil
	}
	return certificate.Certificate{}, core.NewNotFoundError("certificate", classID)
}

func (repo *certificateRepository) GetCertificateByCode(_ context.Context, code string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.table {
		if c.Code == code {
			return c, nil
		}
	}
	return certificate.Certificate{}, core.NewNotFoundError("certificate", code)
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	k := key(c.StudentID, c.ClassID)
	if _, ok := repo.db.table[k]; ok {
		return certificate.Certificate{}, core.NewConflictError("certificate already issued")
	}
	for _, existing := range repo.db.table {
		if existing.Code == c.Code {
			return certificate.Certificate{}, core.NewConflictError("certificate code already taken")
		}
	}
	repo.db.table[k] = c
	return c, nil
}
