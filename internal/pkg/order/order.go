package order

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedOrder is returned when an order token cannot be decoded.
var ErrMalformedOrder = errors.New("malformed order token")

// Separator joins the subject and resource segments. Subject ids are
// numeric and Telegram resource ids never contain ":", so the separator
// cannot collide with legal id characters.
const Separator = ":"

// ID binds a buyer (subject) to a purchased resource. It is exchanged with
// the payment gateway as a single opaque order token.
type ID struct {
	SubjectID  int64
	ResourceID string
}

// Encode serializes the identifier as "<subject_id>:<resource_id>".
func Encode(subjectID int64, resourceID string) string {
	return fmt.Sprintf("%d%s%s", subjectID, Separator, resourceID)
}

// Decode parses an order token. The split is on the first separator so
// resource ids may themselves contain ":". Any violation yields
// ErrMalformedOrder, never a partial identifier.
func Decode(token string) (ID, error) {
	subject, resource, found := strings.Cut(token, Separator)
	if !found {
		return ID{}, fmt.Errorf("%w: missing separator in %q", ErrMalformedOrder, token)
	}

	subjectID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || subjectID < 0 {
		return ID{}, fmt.Errorf("%w: invalid subject id in %q", ErrMalformedOrder, token)
	}
	if resource == "" {
		return ID{}, fmt.Errorf("%w: empty resource id in %q", ErrMalformedOrder, token)
	}

	return ID{SubjectID: subjectID, ResourceID: resource}, nil
}

// String implements fmt.Stringer for log output.
func (id ID) String() string {
	return Encode(id.SubjectID, id.ResourceID)
}
