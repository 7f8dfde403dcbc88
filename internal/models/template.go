package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldDefinition is used for typed access to known field properties.
type FieldDefinition struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
	Indexed     bool     `json:"indexed,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
}

// FormTemplate stores fields as raw maps to preserve all frontend
// properties (layout, validation hints, etc.).
type FormTemplate struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Fields      []map[string]any   `bson:"fields" json:"fields"`

	// AllowDelegation disabled means single-step forms: a draft save
	// promotes the submission straight to Approved and no custody
	// chain is ever built.
	AllowDelegation          bool `bson:"allowDelegation" json:"allowDelegation"`
	AllowMultipleSubmissions bool `bson:"allowMultipleSubmissions" json:"allowMultipleSubmissions"`

	// AssignedTo lists the primary recipients. Each gets an explicit
	// root assignment when the template is distributed.
	AssignedTo []primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`

	CreatedBy primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TypedFields converts the raw field maps to typed FieldDefinition structs.
func (t *FormTemplate) TypedFields() []FieldDefinition {
	if len(t.Fields) == 0 {
		return nil
	}
	data, err := json.Marshal(t.Fields)
	if err != nil {
		return nil
	}
	var fields []FieldDefinition
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return fields
}
