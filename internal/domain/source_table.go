package domain

// SourceTable describes a remote table the poller can read from.
type SourceTable struct {
	Name            string `json:"name" mapstructure:"name"`
	Label           string `json:"label" mapstructure:"label"`
	TimestampColumn string `json:"timestamp_column" mapstructure:"timestamp_column"`
	IDColumn        string `json:"id_column" mapstructure:"id_column"`
}

// WithDefaults fills in the conventional column names.
func (t SourceTable) WithDefaults() SourceTable {
	if t.TimestampColumn == "" {
		t.TimestampColumn = "created_at"
	}
	if t.IDColumn == "" {
		t.IDColumn = "id"
	}
	if t.Label == "" {
		t.Label = t.Name
	}
	return t
}
