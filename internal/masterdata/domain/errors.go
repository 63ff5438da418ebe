package masterdata

import "fmt"

// Reference kinds for resolution errors.
const (
	RefKindMeter     = "meter"
	RefKindRecipient = "recipient"
	RefKindGroup     = "group"
)

// ResolutionError reports a logical reference with no directory match. It is
// recorded and the reference is excluded; the batch continues.
type ResolutionError struct {
	Kind string
	Ref  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("masterdata: unresolved %s reference %q", e.Kind, e.Ref)
}
