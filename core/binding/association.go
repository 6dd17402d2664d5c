package binding

// AssociationTable stores every relationship association row.
const AssociationTable = "relationship_associations"

// RelationshipAssociation is one association row between two objects.
type RelationshipAssociation struct {
	ID              string `gorm:"column:id;primaryKey;size:36"`
	Relationship    string `gorm:"column:relationship;size:100;index:idx_assoc_source,priority:1;index:idx_assoc_destination,priority:1"`
	SourceType      string `gorm:"column:source_type;size:100"`
	SourceID        string `gorm:"column:source_id;size:36;index:idx_assoc_source,priority:2"`
	DestinationType string `gorm:"column:destination_type;size:100"`
	DestinationID   string `gorm:"column:destination_id;size:36;index:idx_assoc_destination,priority:2"`
}

// TableName overrides the gorm table name.
func (RelationshipAssociation) TableName() string { return AssociationTable }

// ends returns the columns of this model's end and of the peer end.
func (f *Field) ends() (ownType, ownID, peerType, peerID string) {
	if f.Side == SideDestination {
		return "destination_type", "destination_id", "source_type", "source_id"
	}
	return "source_type", "source_id", "destination_type", "destination_id"
}
