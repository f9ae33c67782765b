package model

import "github.com/shopspring/decimal"

// Contact fields shared by customers, vendors and employees follow the
// QuickBooks name-and-address shape.

// PhysicalAddress is a QuickBooks postal address.
type PhysicalAddress struct {
	ID                     string `json:"Id,omitempty"`
	Line1                  string `json:"Line1,omitempty"`
	Line2                  string `json:"Line2,omitempty"`
	City                   string `json:"City,omitempty"`
	CountrySubDivisionCode string `json:"CountrySubDivisionCode,omitempty"`
	PostalCode             string `json:"PostalCode,omitempty"`
	Country                string `json:"Country,omitempty"`
}

// TelephoneNumber is a QuickBooks phone number.
type TelephoneNumber struct {
	FreeFormNumber string `json:"FreeFormNumber,omitempty"`
}

// EmailAddress is a QuickBooks email address.
type EmailAddress struct {
	Address string `json:"Address,omitempty"`
}

// WebSiteAddress is a QuickBooks web address.
type WebSiteAddress struct {
	URI string `json:"URI,omitempty"`
}

// Customer per the QuickBooks Customer schema.
type Customer struct {
	ID               string           `json:"Id,omitempty"`
	DisplayName      string           `json:"DisplayName"`
	Title            string           `json:"Title,omitempty"`
	GivenName        string           `json:"GivenName,omitempty"`
	MiddleName       string           `json:"MiddleName,omitempty"`
	FamilyName       string           `json:"FamilyName,omitempty"`
	Suffix           string           `json:"Suffix,omitempty"`
	CompanyName      string           `json:"CompanyName,omitempty"`
	Active           bool             `json:"Active"`
	PrimaryPhone     *TelephoneNumber `json:"PrimaryPhone,omitempty"`
	Mobile           *TelephoneNumber `json:"Mobile,omitempty"`
	Fax              *TelephoneNumber `json:"Fax,omitempty"`
	PrimaryEmailAddr *EmailAddress    `json:"PrimaryEmailAddr,omitempty"`
	WebAddr          *WebSiteAddress  `json:"WebAddr,omitempty"`
	BillAddr         *PhysicalAddress `json:"BillAddr,omitempty"`
	ShipAddr         *PhysicalAddress `json:"ShipAddr,omitempty"`
	Notes            string           `json:"Notes,omitempty"`
	Balance          decimal.Decimal  `json:"Balance,omitempty"`
	PrintOnCheckName string           `json:"PrintOnCheckName,omitempty"`
	CurrencyRef      *Ref             `json:"CurrencyRef,omitempty"`
	SyncToken        string           `json:"SyncToken,omitempty"`
}

// Vendor per the QuickBooks Vendor schema.
type Vendor struct {
	ID               string           `json:"Id,omitempty"`
	DisplayName      string           `json:"DisplayName"`
	Title            string           `json:"Title,omitempty"`
	GivenName        string           `json:"GivenName,omitempty"`
	MiddleName       string           `json:"MiddleName,omitempty"`
	FamilyName       string           `json:"FamilyName,omitempty"`
	Suffix           string           `json:"Suffix,omitempty"`
	CompanyName      string           `json:"CompanyName,omitempty"`
	Active           bool             `json:"Active"`
	PrimaryPhone     *TelephoneNumber `json:"PrimaryPhone,omitempty"`
	Mobile           *TelephoneNumber `json:"Mobile,omitempty"`
	Fax              *TelephoneNumber `json:"Fax,omitempty"`
	PrimaryEmailAddr *EmailAddress    `json:"PrimaryEmailAddr,omitempty"`
	WebAddr          *WebSiteAddress  `json:"WebAddr,omitempty"`
	BillAddr         *PhysicalAddress `json:"BillAddr,omitempty"`
	TaxIdentifier    string           `json:"TaxIdentifier,omitempty"`
	AcctNum          string           `json:"AcctNum,omitempty"`
	Balance          decimal.Decimal  `json:"Balance,omitempty"`
	PrintOnCheckName string           `json:"PrintOnCheckName,omitempty"`
	CurrencyRef      *Ref             `json:"CurrencyRef,omitempty"`
	SyncToken        string           `json:"SyncToken,omitempty"`
}

// Employee per the QuickBooks Employee schema.
type Employee struct {
	ID               string           `json:"Id,omitempty"`
	GivenName        string           `json:"GivenName,omitempty"`
	MiddleName       string           `json:"MiddleName,omitempty"`
	FamilyName       string           `json:"FamilyName,omitempty"`
	DisplayName      string           `json:"DisplayName,omitempty"`
	Active           bool             `json:"Active"`
	PrimaryPhone     *TelephoneNumber `json:"PrimaryPhone,omitempty"`
	Mobile           *TelephoneNumber `json:"Mobile,omitempty"`
	PrimaryEmailAddr *EmailAddress    `json:"PrimaryEmailAddr,omitempty"`
	PrimaryAddr      *PhysicalAddress `json:"PrimaryAddr,omitempty"`
	HiredDate        string           `json:"HiredDate,omitempty"`
	EmployeeNumber   string           `json:"EmployeeNumber,omitempty"`
	SyncToken        string           `json:"SyncToken,omitempty"`
}

// FullName joins an employee's given and family names, the key used for
// existing-employee detection.
func (e Employee) FullName() string {
	switch {
	case e.GivenName == "":
		return e.FamilyName
	case e.FamilyName == "":
		return e.GivenName
	default:
		return e.GivenName + " " + e.FamilyName
	}
}

// Class per the QuickBooks Class schema.
type Class struct {
	ID                 string `json:"Id,omitempty"`
	Name               string `json:"Name"`
	FullyQualifiedName string `json:"FullyQualifiedName,omitempty"`
	SubClass           bool   `json:"SubClass,omitempty"`
	ParentRef          *Ref   `json:"ParentRef,omitempty"`
	Active             bool   `json:"Active"`
	SyncToken          string `json:"SyncToken,omitempty"`
}
