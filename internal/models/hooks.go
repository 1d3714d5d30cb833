package models

import (
	"gorm.io/gorm"
)

func (p *Project) AfterFind(tx *gorm.DB) error {
	p.SignSummaryFile(tx.Statement.Context)
	return nil
}
