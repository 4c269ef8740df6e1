package directory

// requiredSpecialties maps a project type to the specialty tags that qualify
// a verifier to review it.
var requiredSpecialties = map[ProjectType][]string{
	ProjectTypeReforestation:       {"reforestation", "environmental"},
	ProjectTypeSolar:               {"solar", "renewable_energy"},
	ProjectTypeWind:                {"wind", "renewable_energy"},
	ProjectTypeBiogas:              {"biogas", "waste_management"},
	ProjectTypeWasteManagement:     {"waste_management", "environmental"},
	ProjectTypeMangroveRestoration: {"mangrove_restoration", "environmental"},
}

// RequiredSpecialties returns the qualifying specialties for a project type.
// Unknown types require a specialty of the same name.
func RequiredSpecialties(projectType ProjectType) []string {
	if tags, ok := requiredSpecialties[projectType]; ok {
		return tags
	}
	return []string{string(projectType)}
}

// HasRequiredSpecialty reports whether any of the user's specialties qualifies
// them for the project type.
func HasRequiredSpecialty(user *User, projectType ProjectType) bool {
	for _, required := range RequiredSpecialties(projectType) {
		for _, have := range user.Specialties {
			if have == required {
				return true
			}
		}
	}
	return false
}
