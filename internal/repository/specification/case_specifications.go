package specification

import "gorm.io/gorm"

// ByCaseID filters on the corpus string id, which is not a uuid.
type ByCaseID struct {
	ID string
}

func (s ByCaseID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}
