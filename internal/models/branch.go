package models

import "gorm.io/datatypes"

// Branch is an organizational unit (a plant or sales office) used to scope
// role assignments. Identity of the people working in a branch is owned by
// the external identity system; only the branch itself lives here.
type Branch struct {
	BaseModel

	Code string `gorm:"uniqueIndex;not null" json:"code"`
	Name string `gorm:"not null" json:"name"`

	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`

	Metadata datatypes.JSON `json:"metadata"`
}
