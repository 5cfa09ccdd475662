package tsclient

import "encoding/json"

// FieldType is the type of a collection field.
type FieldType string

// Field type constants.
const (
	FieldString      FieldType = "string"
	FieldStringArray FieldType = "string[]"
	FieldInt32       FieldType = "int32"
	FieldInt32Array  FieldType = "int32[]"
	FieldInt64       FieldType = "int64"
	FieldInt64Array  FieldType = "int64[]"
	FieldFloat       FieldType = "float"
	FieldFloatArray  FieldType = "float[]"
	FieldBool        FieldType = "bool"
	FieldBoolArray   FieldType = "bool[]"
	FieldGeopoint    FieldType = "geopoint"
	FieldObject      FieldType = "object"
	FieldObjectArray FieldType = "object[]"
	FieldAuto        FieldType = "auto"
	FieldStringAuto  FieldType = "string*"
)

// Field is one field of a collection schema.
type Field struct {
	Name     string      `json:"name"`
	Type     FieldType   `json:"type,omitempty"`
	Facet    bool        `json:"facet,omitempty"`
	Optional bool        `json:"optional,omitempty"`
	Index    *bool       `json:"index,omitempty"`
	Sort     *bool       `json:"sort,omitempty"`
	Infix    bool        `json:"infix,omitempty"`
	Locale   string      `json:"locale,omitempty"`
	NumDim   int         `json:"num_dim,omitempty"`
	Embed    *FieldEmbed `json:"embed,omitempty"`
	// Drop removes the field in CollectionService.Update.
	Drop bool `json:"drop,omitempty"`
}

// FieldEmbed makes the service compute a vector field from other fields.
type FieldEmbed struct {
	From        []string       `json:"from"`
	ModelConfig map[string]any `json:"model_config"`
}

// CollectionSchema describes a collection to create.
type CollectionSchema struct {
	Name                string   `json:"name"`
	Fields              []Field  `json:"fields"`
	DefaultSortingField string   `json:"default_sorting_field,omitempty"`
	TokenSeparators     []string `json:"token_separators,omitempty"`
	SymbolsToIndex      []string `json:"symbols_to_index,omitempty"`
	EnableNestedFields  bool     `json:"enable_nested_fields,omitempty"`
}

// Collection is a collection as reported by the service.
type Collection struct {
	CollectionSchema
	NumDocuments int64 `json:"num_documents"`
	CreatedAt    int64 `json:"created_at"`
}

// Document is an untyped document.
type Document map[string]any

// ImportAction controls how imported documents are written.
type ImportAction string

// Import action constants.
const (
	ActionCreate  ImportAction = "create"
	ActionUpsert  ImportAction = "upsert"
	ActionUpdate  ImportAction = "update"
	ActionEmplace ImportAction = "emplace"
)

// ImportParams configures a bulk import.
type ImportParams struct {
	Action    ImportAction
	BatchSize int
	// ReturnID reports the id of every imported document.
	ReturnID bool
}

// ImportResult is the outcome of one imported line.
type ImportResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Code     int    `json:"code,omitempty"`
	Document string `json:"document,omitempty"`
	ID       string `json:"id,omitempty"`
}

// ExportParams filters and projects an export.
type ExportParams struct {
	FilterBy      string
	IncludeFields string
	ExcludeFields string
}

// SearchResult is the response of a single search.
type SearchResult struct {
	Found         int            `json:"found"`
	FoundDocs     *int           `json:"found_docs,omitempty"`
	OutOf         int            `json:"out_of"`
	Page          int            `json:"page"`
	SearchTimeMs  int            `json:"search_time_ms"`
	SearchCutoff  bool           `json:"search_cutoff"`
	FacetCounts   []FacetCounts  `json:"facet_counts"`
	Hits          []Hit          `json:"hits"`
	GroupedHits   []GroupedHits  `json:"grouped_hits,omitempty"`
	RequestParams *RequestParams `json:"request_params,omitempty"`
}

// Hit is one matching document with its ranking information.
type Hit struct {
	Document       json.RawMessage `json:"document"`
	Highlights     []Highlight     `json:"highlights"`
	TextMatch      int64           `json:"text_match"`
	VectorDistance *float64        `json:"vector_distance,omitempty"`
}

// Decode unmarshals the hit's document into v.
func (h Hit) Decode(v any) error {
	return json.Unmarshal(h.Document, v) //nolint:wrapcheck // caller adds context
}

// GroupedHits is one group of a group_by search.
type GroupedHits struct {
	GroupKey []any `json:"group_key"`
	Hits     []Hit `json:"hits"`
	Found    int   `json:"found"`
}

// Highlight marks the query tokens found in a field.
type Highlight struct {
	Field         string   `json:"field"`
	Snippet       string   `json:"snippet"`
	MatchedTokens []string `json:"matched_tokens"`
}

// FacetCounts holds the value counts of one faceted field.
type FacetCounts struct {
	FieldName string       `json:"field_name"`
	Counts    []FacetCount `json:"counts"`
	Stats     FacetStats   `json:"stats"`
}

// FacetCount is the number of hits sharing a facet value.
type FacetCount struct {
	Value       string `json:"value"`
	Highlighted string `json:"highlighted"`
	Count       int    `json:"count"`
}

// FacetStats summarizes a faceted field.
type FacetStats struct {
	TotalValues int      `json:"total_values"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Avg         *float64 `json:"avg,omitempty"`
	Sum         *float64 `json:"sum,omitempty"`
}

// RequestParams echoes parameters the service applied.
type RequestParams struct {
	CollectionName string `json:"collection_name"`
	PerPage        int    `json:"per_page"`
	Q              string `json:"q"`
}
