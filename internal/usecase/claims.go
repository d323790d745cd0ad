package usecase

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/castlegem/elasticidentity/internal/entity"
)

// JWT claim names the token layer owns; account claims never use them.
var reservedClaimNames = map[string]struct{}{
	"sub": {}, "exp": {}, "iat": {}, "nbf": {},
	"iss": {}, "aud": {}, "jti": {}, "roles": {},
}

// ClaimsToMap converts account claims into JWT map claims. The inverse is
// ClaimsFromMap.
func ClaimsToMap(claims []entity.Claim) jwt.MapClaims {
	m := jwt.MapClaims{}
	for _, c := range claims {
		if _, reserved := reservedClaimNames[c.Type]; reserved {
			continue
		}
		m[c.Type] = c.Value
	}
	return m
}

// ClaimsFromMap converts JWT map claims back into account claims,
// skipping reserved names and non-string values.
func ClaimsFromMap(m jwt.MapClaims) []entity.Claim {
	var claims []entity.Claim
	for name, value := range m {
		if _, reserved := reservedClaimNames[name]; reserved {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		claims = append(claims, entity.Claim{Type: name, Value: s})
	}
	return claims
}
