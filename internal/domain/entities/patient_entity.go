package entities

import (
	"time"
)

// LastVisitNever is the LastVisit value of a patient with no visits yet.
const LastVisitNever = "Not yet seen"

// Patient is one patient record with its visit history, newest visit first.
// LastVisit and History change only through an appended visit.
type Patient struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"not null"`
	Age       int       `json:"age" gorm:"not null"`
	Gender    string    `json:"gender"`
	Phone     string    `json:"phone"`
	LastVisit string    `json:"lastVisit" gorm:"column:last_visit"`
	History   []Visit   `json:"history" gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"createdAt,omitempty" gorm:"autoCreateTime"`
}

// Clone returns a deep copy so callers never share a history slice with the store.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	c := *p
	c.History = make([]Visit, len(p.History))
	copy(c.History, p.History)
	return &c
}

// LatestSeverity is the severity of the newest visit, empty for a patient
// never seen.
func (p *Patient) LatestSeverity() Severity {
	if len(p.History) == 0 {
		return ""
	}
	return p.History[0].Severity
}

// FindVisit returns the visit with the given id.
func (p *Patient) FindVisit(id string) (Visit, bool) {
	for _, v := range p.History {
		if v.ID == id {
			return v, true
		}
	}
	return Visit{}, false
}
