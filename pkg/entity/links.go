package entity

// ContainsLink reports whether id is present in links
func ContainsLink(links []string, id string) bool {
	for _, l := range links {
		if l == id {
			return true
		}
	}

	return false
}

// AddLink appends id unless it is already present, reports whether
// the list has changed
func AddLink(links []string, id string) ([]string, bool) {
	if ContainsLink(links, id) {
		return links, false
	}

	return append(links, id), true
}

// RemoveLink removes every occurrence of id, reports whether the list has changed
func RemoveLink(links []string, id string) ([]string, bool) {
	if !ContainsLink(links, id) {
		return links, false
	}

	out := make([]string, 0, len(links))
	for _, l := range links {
		if l != id {
			out = append(out, l)
		}
	}

	return out, true
}

// UniqueLinks removes empty and duplicate ids while keeping the order,
// nil stays nil so that "not provided" survives normalization
func UniqueLinks(links []string) []string {
	if links == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if l == "" {
			continue
		}

		if _, ok := seen[l]; ok {
			continue
		}

		seen[l] = struct{}{}
		out = append(out, l)
	}

	return out
}

// ApplicationAccess grants an entity access to an application,
// optionally with a set of the application's roles
type ApplicationAccess struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Copy returns a deep copy
func (a ApplicationAccess) Copy() ApplicationAccess {
	return ApplicationAccess{
		Name:  a.Name,
		Roles: copyStrings(a.Roles),
	}
}

// AccessNames returns the application names of an access list
func AccessNames(access []ApplicationAccess) []string {
	if access == nil {
		return nil
	}

	names := make([]string, 0, len(access))
	for _, a := range access {
		names = append(names, a.Name)
	}

	return names
}

// HasAccess reports whether the list grants access to an application
func HasAccess(access []ApplicationAccess, name string) bool {
	for _, a := range access {
		if a.Name == name {
			return true
		}
	}

	return false
}

// AddAccess appends a membership-only access unless one for
// this application is already present
func AddAccess(access []ApplicationAccess, name string) ([]ApplicationAccess, bool) {
	if HasAccess(access, name) {
		return access, false
	}

	return append(access, ApplicationAccess{Name: name, Roles: []string{}}), true
}

// RemoveAccess removes all access entries for an application
func RemoveAccess(access []ApplicationAccess, name string) ([]ApplicationAccess, bool) {
	if !HasAccess(access, name) {
		return access, false
	}

	out := make([]ApplicationAccess, 0, len(access))
	for _, a := range access {
		if a.Name != name {
			out = append(out, a)
		}
	}

	return out, true
}

func copyAccess(access []ApplicationAccess) []ApplicationAccess {
	if access == nil {
		return nil
	}

	out := make([]ApplicationAccess, 0, len(access))
	for _, a := range access {
		out = append(out, a.Copy())
	}

	return out
}

// uniqueAccess merges entries for the same application into one,
// roles are unioned
func uniqueAccess(access []ApplicationAccess) []ApplicationAccess {
	if access == nil {
		return nil
	}

	index := make(map[string]int, len(access))
	out := make([]ApplicationAccess, 0, len(access))
	for _, a := range access {
		if a.Name == "" {
			continue
		}

		if i, ok := index[a.Name]; ok {
			out[i].Roles = UniqueLinks(append(out[i].Roles, a.Roles...))
			continue
		}

		a = a.Copy()
		if a.Roles == nil {
			a.Roles = []string{}
		}

		a.Roles = UniqueLinks(a.Roles)
		index[a.Name] = len(out)
		out = append(out, a)
	}

	return out
}
