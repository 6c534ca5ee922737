// Package layer provides the deterministic identity scheme for user layers:
// every layer is addressed externally by UUID and internally by a derived
// schema/table name pair under the attached lake catalog.
//
// Addressing convention:
//   - Schema per user: user_<hex32(user_id)>
//   - Table per layer: t_<hex32(layer_id)>
//   - Full path: <catalog>.user_<hex32(user_id)>.t_<hex32(layer_id)>
package layer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InvalidLayerIDError is returned when a layer ID cannot be normalized to a
// canonical UUID. It carries the offending input.
type InvalidLayerIDError struct {
	ID string
}

func (e *InvalidLayerIDError) Error() string {
	return fmt.Sprintf("invalid layer ID: %q, expected UUID format", e.ID)
}

// NotFoundError is returned when a valid layer ID has no row in the catalog.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("layer not found: %s", e.ID)
}

// Normalize returns the canonical lowercase hyphenated form of a layer ID.
// It accepts both the 32-char hex form and the hyphenated UUID form.
// Normalization is idempotent.
func Normalize(id string) (string, error) {
	clean := strings.ToLower(strings.ReplaceAll(id, "-", ""))
	if !isHex32(clean) {
		return "", &InvalidLayerIDError{ID: id}
	}
	return hyphenate(clean), nil
}

// FormatUUID re-inserts hyphens into a 32-char hex string. Already-hyphenated
// input is returned unchanged.
func FormatUUID(s string) string {
	if len(s) == 32 {
		return hyphenate(s)
	}
	return s
}

// TableName converts a normalized layer ID to its lake table name,
// t_<hex32>.
func TableName(layerID string) string {
	return "t_" + strings.ReplaceAll(layerID, "-", "")
}

// UserSchemaName returns the lake schema name owning a user's layers,
// user_<hex32>.
func UserSchemaName(userID uuid.UUID) string {
	return "user_" + strings.ReplaceAll(userID.String(), "-", "")
}

// QualifiedTableName returns the fully qualified table address
// <catalog>.user_<hex32>.t_<hex32>.
func QualifiedTableName(catalog string, userID uuid.UUID, layerID string) string {
	return catalog + "." + UserSchemaName(userID) + "." + TableName(layerID)
}

func isHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func hyphenate(hex32 string) string {
	return hex32[:8] + "-" + hex32[8:12] + "-" + hex32[12:16] + "-" + hex32[16:20] + "-" + hex32[20:]
}
