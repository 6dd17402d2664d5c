package models

// Tenant represents the 'tenants' table.
type Tenant struct {
	ID   string `gorm:"column:id;primaryKey;size:36"`
	Name string `gorm:"column:name;size:100;not null;uniqueIndex"`
}

// TableName overrides the table name.
func (Tenant) TableName() string { return "tenants" }

// Tag represents the 'tags' table.
type Tag struct {
	ID   string `gorm:"column:id;primaryKey;size:36"`
	Name string `gorm:"column:name;size:100;not null;uniqueIndex"`
}

// TableName overrides the table name.
func (Tag) TableName() string { return "tags" }

// Location represents the 'locations' table.
type Location struct {
	ID       string  `gorm:"column:id;primaryKey;size:36"`
	Name     string  `gorm:"column:name;size:100;not null;uniqueIndex"`
	TenantID *string `gorm:"column:tenant_id;size:36;index"`
}

// TableName overrides the table name.
func (Location) TableName() string { return "locations" }

// Namespace represents the 'namespaces' table. Prefixes and addresses are unique per namespace.
type Namespace struct {
	ID          string `gorm:"column:id;primaryKey;size:36"`
	Name        string `gorm:"column:name;size:100;not null;uniqueIndex"`
	Description string `gorm:"column:description;size:255"`
}

// TableName overrides the table name.
func (Namespace) TableName() string { return "namespaces" }

// Device represents the 'devices' table. Serial numbers live in the custom field bag.
type Device struct {
	ID              string  `gorm:"column:id;primaryKey;size:36"`
	Name            string  `gorm:"column:name;size:100;not null;uniqueIndex"`
	Status          string  `gorm:"column:status;size:50"`
	LocationID      *string `gorm:"column:location_id;size:36;index"`
	TenantID        *string `gorm:"column:tenant_id;size:36;index"`
	CustomFieldData *string `gorm:"column:custom_field_data;type:text"`
}

// TableName overrides the table name.
func (Device) TableName() string { return "devices" }

// DeviceTag is the join table between devices and tags.
type DeviceTag struct {
	DeviceID string `gorm:"column:device_id;primaryKey;size:36"`
	TagID    string `gorm:"column:tag_id;primaryKey;size:36;index"`
}

// TableName overrides the table name.
func (DeviceTag) TableName() string { return "device_tags" }

// Interface represents the 'interfaces' table.
type Interface struct {
	ID       string `gorm:"column:id;primaryKey;size:36"`
	Name     string `gorm:"column:name;size:64;not null;uniqueIndex:idx_interface_device,priority:2"`
	DeviceID string `gorm:"column:device_id;size:36;not null;uniqueIndex:idx_interface_device,priority:1"`
	Type     string `gorm:"column:type;size:50"`
	Enabled  *bool  `gorm:"column:enabled"`
	MTU      *int   `gorm:"column:mtu"`
}

// TableName overrides the table name.
func (Interface) TableName() string { return "interfaces" }

// Prefix represents the 'prefixes' table. VLAN groups live in the custom field bag.
type Prefix struct {
	ID              string  `gorm:"column:id;primaryKey;size:36"`
	Prefix          string  `gorm:"column:prefix;size:64;not null;uniqueIndex:idx_prefix_namespace,priority:2"`
	NamespaceID     string  `gorm:"column:namespace_id;size:36;not null;uniqueIndex:idx_prefix_namespace,priority:1"`
	TenantID        *string `gorm:"column:tenant_id;size:36;index"`
	Status          string  `gorm:"column:status;size:50"`
	CustomFieldData *string `gorm:"column:custom_field_data;type:text"`
}

// TableName overrides the table name.
func (Prefix) TableName() string { return "prefixes" }

// IPAddress represents the 'ip_addresses' table. Interface assignments are
// relationship associations, not columns.
type IPAddress struct {
	ID          string `gorm:"column:id;primaryKey;size:36"`
	Address     string `gorm:"column:address;size:64;not null;uniqueIndex:idx_address_namespace,priority:2"`
	NamespaceID string `gorm:"column:namespace_id;size:36;not null;uniqueIndex:idx_address_namespace,priority:1"`
	Status      string `gorm:"column:status;size:50"`
	DNSName     string `gorm:"column:dns_name;size:255"`
}

// TableName overrides the table name.
func (IPAddress) TableName() string { return "ip_addresses" }
