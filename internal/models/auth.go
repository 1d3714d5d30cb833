package models

type User struct {
	Base
	Email      string     `gorm:"uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"not null" json:"-"`
	Name       string     `json:"name"`
	Role       UserRole   `gorm:"not null;default:'viewer'" json:"role"`
	ClientType ClientType `gorm:"not null;default:'web'" json:"clientType"`
}
