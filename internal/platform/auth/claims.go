package auth

import (
	"slices"
	"strings"
)

// parseRoles reads a role claim in any of the shapes custom claims take in practice: a single
// string, a list of strings, or a map of role to bool. Unknown shapes yield no roles.
func parseRoles(raw any) []string {
	var candidates []string
	switch v := raw.(type) {
	case string:
		candidates = []string{v}
	case []string:
		candidates = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	case map[string]any:
		for role, granted := range v {
			if on, ok := granted.(bool); ok && on {
				candidates = append(candidates, role)
			}
		}
		slices.Sort(candidates)
	}

	roles := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if role := normaliseRole(candidate); role != "" && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	return roles
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// bearerToken returns the credential of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
