// common.go
//
// Shared request parsing and error classification for the API handlers.

package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/attrkit/eavdb/internal/eav"
)

// parseID extracts a numeric path parameter
func parseID(c *fiber.Ctx, name string) (uint64, error) {
	return strconv.ParseUint(c.Params(name), 10, 64)
}

// isInputError reports whether the error describes bad caller input
// rather than a storage failure, so handlers can map it to a 400.
func isInputError(err error) bool {
	var unknownAttr *eav.UnknownAttributeError
	var unsupported *eav.UnsupportedLookupError
	var rangeType *eav.RangeTypeError
	var rangeShape *eav.RangeShapeError
	var unknownChoice *eav.UnknownChoiceError
	return errors.As(err, &unknownAttr) ||
		errors.As(err, &unsupported) ||
		errors.As(err, &rangeType) ||
		errors.As(err, &rangeShape) ||
		errors.As(err, &unknownChoice)
}

// isAttrNotFound reports whether the error names an attribute absent from
// the entity's schema set, mapped to a 404.
func isAttrNotFound(err error) bool {
	var attrNotFound *eav.AttributeNotFoundError
	return errors.As(err, &attrNotFound)
}
