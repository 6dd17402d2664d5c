package inventory

import (
	"inventory-sync/core/binding"
	"inventory-sync/core/reconcile"
)

// Record types of the inventory.
const (
	TypeTenant    = "tenant"
	TypeTag       = "tag"
	TypeLocation  = "location"
	TypeNamespace = "namespace"
	TypeDevice    = "device"
	TypeInterface = "interface"
	TypePrefix    = "prefix"
	TypeIPAddress = "ip_address"
)

// RelationshipInterfaceIP links an interface (source) to its IP addresses (destination).
const RelationshipInterfaceIP = "interface_ip_addresses"

// TopLevel lists the root types in dependency order. Interfaces are children of devices.
var TopLevel = []string{TypeTenant, TypeTag, TypeLocation, TypeNamespace, TypeDevice, TypePrefix, TypeIPAddress}

// Models returns fresh binding models for every inventory table.
func Models() []*binding.Model {
	return []*binding.Model{
		{
			Schema: &reconcile.Schema{TypeName: TypeTenant, Identifiers: []string{"name"}},
			Table:  "tenants",
			Fields: []binding.Field{{Name: "name", Kind: binding.Scalar}},
		},
		{
			Schema: &reconcile.Schema{TypeName: TypeTag, Identifiers: []string{"name"}},
			Table:  "tags",
			Fields: []binding.Field{{Name: "name", Kind: binding.Scalar}},
		},
		{
			Schema: &reconcile.Schema{
				TypeName:    TypeLocation,
				Identifiers: []string{"name"},
				Attributes:  []string{"tenant__name"},
				References:  map[string]string{"tenant__name": TypeTenant},
			},
			Table: "locations",
			Fields: []binding.Field{
				{Name: "name", Kind: binding.Scalar},
				{Name: "tenant__name", Kind: binding.ForeignKey, Column: "tenant_id", Related: TypeTenant},
			},
		},
		{
			Schema: &reconcile.Schema{TypeName: TypeNamespace, Identifiers: []string{"name"}, Attributes: []string{"description"}},
			Table:  "namespaces",
			Fields: []binding.Field{
				{Name: "name", Kind: binding.Scalar},
				{Name: "description", Kind: binding.Scalar},
			},
		},
		{
			Schema: &reconcile.Schema{
				TypeName:      TypeDevice,
				Identifiers:   []string{"name"},
				Attributes:    []string{"status", "location__name", "tenant__name", "tags", "serial"},
				Children:      map[string]string{TypeInterface: "interfaces"},
				References:    map[string]string{"location__name": TypeLocation, "tenant__name": TypeTenant},
				SetAttributes: []string{"tags"},
			},
			Table: "devices",
			Fields: []binding.Field{
				{Name: "name", Kind: binding.Scalar},
				{Name: "status", Kind: binding.Scalar},
				{Name: "location__name", Kind: binding.ForeignKey, Column: "location_id", Related: TypeLocation},
				{Name: "tenant__name", Kind: binding.ForeignKey, Column: "tenant_id", Related: TypeTenant},
				{
					Name:          "tags",
					Kind:          binding.ManyToMany,
					Related:       TypeTag,
					Keys:          []string{"name"},
					JoinTable:     "device_tags",
					OwnerColumn:   "device_id",
					RelatedColumn: "tag_id",
				},
				{Name: "serial", Kind: binding.Custom},
			},
		},
		{
			Schema: &reconcile.Schema{
				TypeName:     TypeInterface,
				Identifiers:  []string{"name", "device__name"},
				Attributes:   []string{"type", "enabled", "mtu"},
				ParentFields: map[string]string{"device__name": "name"},
			},
			Table: "interfaces",
			Fields: []binding.Field{
				{Name: "name", Kind: binding.Scalar},
				{Name: "device__name", Kind: binding.ForeignKey, Column: "device_id", Related: TypeDevice},
				{Name: "type", Kind: binding.Scalar},
				{Name: "enabled", Kind: binding.Scalar, Type: binding.Bool},
				{Name: "mtu", Kind: binding.Scalar, Type: binding.Int},
			},
		},
		{
			Schema: &reconcile.Schema{
				TypeName:    TypePrefix,
				Identifiers: []string{"prefix", "namespace__name"},
				Attributes:  []string{"status", "tenant__name", "vlan_group"},
				References:  map[string]string{"namespace__name": TypeNamespace, "tenant__name": TypeTenant},
			},
			Table: "prefixes",
			Fields: []binding.Field{
				{Name: "prefix", Kind: binding.Scalar},
				{Name: "namespace__name", Kind: binding.ForeignKey, Column: "namespace_id", Related: TypeNamespace},
				{Name: "status", Kind: binding.Scalar},
				{Name: "tenant__name", Kind: binding.ForeignKey, Column: "tenant_id", Related: TypeTenant},
				{Name: "vlan_group", Kind: binding.Custom},
			},
		},
		{
			Schema: &reconcile.Schema{
				TypeName:    TypeIPAddress,
				Identifiers: []string{"address", "namespace__name"},
				Attributes:  []string{"status", "dns_name", "interface"},
				References:  map[string]string{"namespace__name": TypeNamespace},
			},
			Table: "ip_addresses",
			Fields: []binding.Field{
				{Name: "address", Kind: binding.Scalar},
				{Name: "namespace__name", Kind: binding.ForeignKey, Column: "namespace_id", Related: TypeNamespace},
				{Name: "status", Kind: binding.Scalar},
				{Name: "dns_name", Kind: binding.Scalar},
				{
					Name:         "interface",
					Kind:         binding.Association,
					Relationship: RelationshipInterfaceIP,
					Side:         binding.SideDestination,
					Related:      TypeInterface,
					Keys:         []string{"name", "device__name"},
				},
			},
		},
	}
}

// NewRegistry binds the inventory models.
func NewRegistry() (*binding.Registry, error) {
	return binding.NewRegistry(Models()...)
}
