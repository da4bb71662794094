package filename

// Owner identifies whose document it is.
type Owner string

const (
	OwnerSteve    Owner = "STEVE"
	OwnerAshleigh Owner = "ASHLEIGH"
	OwnerJoint    Owner = "JOINT"
)

var owners = []Owner{OwnerSteve, OwnerAshleigh, OwnerJoint}

// ParseOwner matches s exactly against the known owners.
func ParseOwner(s string) (Owner, bool) {
	for _, o := range owners {
		if string(o) == s {
			return o, true
		}
	}
	return "", false
}

// Intent is the tax treatment of a document.
type Intent string

const (
	IntentBiz      Intent = "BIZ"
	IntentPersonal Intent = "PERSONAL"
	IntentMixed    Intent = "MIXED"
)

var intents = []Intent{IntentBiz, IntentPersonal, IntentMixed}

// ParseIntent matches s exactly against the known intents.
func ParseIntent(s string) (Intent, bool) {
	for _, i := range intents {
		if string(i) == s {
			return i, true
		}
	}
	return "", false
}

// Status is an optional review marker. The zero value means no marker.
type Status string

const (
	StatusNone   Status = ""
	StatusOK     Status = "OK"
	StatusReview Status = "REVIEW"
)

// ParseStatus matches s exactly against the status markers.
// The empty string is not a marker.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusOK, StatusReview:
		return Status(s), true
	default:
		return StatusNone, false
	}
}
