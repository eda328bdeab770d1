// Package domain defines the persistence models for the identity directory
// (domains and the users that belong to them) and the typed records produced
// by the import pipeline. The models are mapped with GORM onto the two-table
// schema stored in the SQLite file.
package domain

// Domain represents a canonical organizational domain name. A row is created
// the first time an import references an unseen name and is never updated or
// deleted afterwards.
//
// Fields:
//   - ID: surrogate primary key assigned on insert.
//   - Name: canonical lowercase name; unique across the table. The empty
//     string is a valid name (principal names without "@").
type Domain struct {
	ID   uint   `json:"id"   gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"type:text;not null;uniqueIndex:ux_domains_name"`
}

// TableName returns the database table name for Domain.
func (Domain) TableName() string { return "domains" }

// User represents one imported identity.
//
// Fields:
//   - ID: surrogate primary key.
//   - DisplayName: free text.
//   - EntraID: opaque identity-provider object id.
//   - Mail: unique when present. Empty mails are stored as NULL so that
//     any number of users without a mailbox can coexist.
//   - UPN: the principal name (local@domain) the domain was derived from.
//   - DomainID: foreign key to the owning domain.
//   - License: license state, "UNLICENSED" when the export had none.
//
// There is no back-reference from Domain to its users; that association is
// reconstructed by query (see repo.ListUsersByDomainPage).
type User struct {
	ID          uint    `json:"id"           gorm:"primaryKey;autoIncrement"`
	DisplayName string  `json:"display_name" gorm:"column:display_name;type:text"`
	EntraID     string  `json:"entra_id"     gorm:"column:entra_id;type:text"`
	Mail        *string `json:"mail"         gorm:"column:mail;type:text;uniqueIndex:ux_users_mail"`
	UPN         string  `json:"upn"          gorm:"column:upn;type:text"`
	DomainID    uint    `json:"domain_id"    gorm:"column:domain_id;not null;index:idx_users_domain"`
	License     string  `json:"license"      gorm:"column:license;type:text;not null;default:'UNLICENSED'"`

	// Domain is the referenced domain row. It is never written through the
	// association; inserts resolve DomainID first.
	Domain Domain `json:"-" gorm:"foreignKey:DomainID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// MailValue returns the mail address or "" when the user has none.
func (u User) MailValue() string {
	if u.Mail == nil {
		return ""
	}
	return *u.Mail
}
