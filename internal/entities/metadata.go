package entities

// Metadata is the key/value table shipped inside every bundled database.
type Metadata struct {
	Key   string `gorm:"primaryKey;size:100" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

func (Metadata) TableName() string {
	return "metadata"
}

// MetadataKeyVersion holds the bundle's integer version, stored as a string.
const MetadataKeyVersion = "version"
