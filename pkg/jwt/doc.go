// Package jwt authenticates requests with HS256 bearer tokens.
//
// Verified claims become the request principal (see package principal), so
// the tenant middleware can fall back to the token's tenant_id claim when a
// request carries no explicit tenant header.
//
//	svc, _ := jwt.New(key, jwt.WithIssuer("tenantguard"), jwt.WithTTL(time.Hour))
//	token, _ := svc.Issue(userID, tenantID)
//
//	r.Use(jwt.Middleware(svc))
//
// The middleware lets requests without a token through, so public routes and
// session-authenticated browsers keep working; a present but invalid token is
// answered with 401. Set MiddlewareConfig.Required to reject anonymous requests.
package jwt
