package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	Batch() IBatch
	Fill() IFill
}

type Repo struct {
	archiveDB *gorm.DB
}

func NewRepo(archiveDB *gorm.DB) IRepo {
	return &Repo{
		archiveDB: archiveDB,
	}
}

func (r *Repo) Batch() IBatch {
	return NewBatchSQLRepo(r.archiveDB)
}

func (r *Repo) Fill() IFill {
	return NewFillSQLRepo(r.archiveDB)
}
