package service

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/apperr"
)

// parseID converts a hex path/body parameter to an ObjectID, mapping
// malformed input to a 400 rather than a decode panic downstream.
func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid id: " + hex)
	}
	return id, nil
}
