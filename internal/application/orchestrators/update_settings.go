package orchestrators

import (
	"context"
	"strings"

	"loyaltyloop/internal/domain/loyalty"
)

// UpdateSettingsInput carries the settings form. Empty fields are left unchanged.
type UpdateSettingsInput struct {
	Name           string
	Logo           string
	PrimaryColor   string
	SecondaryColor string
	Industry       string
}

// UpdateSettingsDeps holds dependencies for UpdateSettings.
type UpdateSettingsDeps struct {
	Business BusinessStore
}

// ExecuteUpdateSettings merges the non-empty settings into the business profile.
// PRE: a business is loaded
// POST: on error the profile is unchanged
func ExecuteUpdateSettings(ctx context.Context, input UpdateSettingsInput, deps UpdateSettingsDeps) error {
	return deps.Business.SaveBusiness(input.patch())
}

func (in UpdateSettingsInput) patch() loyalty.ProfilePatch {
	var p loyalty.ProfilePatch
	set := func(dst **string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = &v
		}
	}
	set(&p.Name, in.Name)
	set(&p.Logo, in.Logo)
	set(&p.PrimaryColor, in.PrimaryColor)
	set(&p.SecondaryColor, in.SecondaryColor)
	set(&p.Industry, in.Industry)
	return p
}
