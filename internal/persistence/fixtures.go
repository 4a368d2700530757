package persistence

import "oct-review-service/internal/domain/entities"

// SeedPatients returns the records a fresh store starts with.
func SeedPatients() []*entities.Patient {
	return []*entities.Patient{
		{ID: "BN001", Name: "Nguyễn Văn A", Age: 65, Gender: "Nam", Phone: "0988.xxx.xxx", LastVisit: "2025-02-15", History: []entities.Visit{}},
		{ID: "BN002", Name: "Trần Thị B", Age: 58, Gender: "Nữ", Phone: "0912.xxx.xxx", LastVisit: "2025-02-14", History: []entities.Visit{}},
	}
}
