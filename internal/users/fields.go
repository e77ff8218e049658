package users

import (
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/angelmondragon/boxlink-backend/pkg/types"
)

// ProfileUpdate is a partial update of identity fields. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

// PreferenceUpdate is a partial update of UI preferences.
type PreferenceUpdate struct {
	Locale *string
	Theme  *enums.Theme
}

var ProfileFields = []types.Field[ProfileUpdate]{
	{Column: "first_name", Value: func(u ProfileUpdate) (any, bool) { return types.Optional(u.FirstName) }},
	{Column: "last_name", Value: func(u ProfileUpdate) (any, bool) { return types.Optional(u.LastName) }},
}

var PreferenceFields = []types.Field[PreferenceUpdate]{
	{Column: "locale", Value: func(u PreferenceUpdate) (any, bool) { return types.Optional(u.Locale) }},
	{Column: "theme", Value: func(u PreferenceUpdate) (any, bool) {
		if u.Theme == nil {
			return nil, false
		}
		return string(*u.Theme), true
	}},
}
