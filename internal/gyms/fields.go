package gyms

import (
	"github.com/angelmondragon/boxlink-backend/pkg/types"
)

// SettingsUpdate is a partial update of gym settings. Nil fields are left untouched.
// RotateEnrollmentCode replaces the code with a generated one and wins over EnrollmentCode.
type SettingsUpdate struct {
	Name                 *string
	Description          *string
	Programming          *bool
	AutoSubscription     *bool
	EnrollmentCode       *string
	RotateEnrollmentCode bool
}

var SettingsFields = []types.Field[SettingsUpdate]{
	{Column: "name", Value: func(u SettingsUpdate) (any, bool) { return types.Optional(u.Name) }},
	{Column: "description", Value: func(u SettingsUpdate) (any, bool) { return types.Optional(u.Description) }},
	{Column: "programming", Value: func(u SettingsUpdate) (any, bool) { return types.Optional(u.Programming) }},
	{Column: "auto_subscription", Value: func(u SettingsUpdate) (any, bool) { return types.Optional(u.AutoSubscription) }},
	{Column: "enrollment_code", Value: func(u SettingsUpdate) (any, bool) { return types.Optional(u.EnrollmentCode) }},
}
