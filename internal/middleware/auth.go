package middleware

import (
	"net/http"
	"strings"

	"billing/internal/model"
	"billing/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Permission codes checked by RequirePermission
const (
	PermInvoicesRead    = "invoices.read"
	PermInvoicesWrite   = "invoices.write"
	PermInvoicesApprove = "invoices.approve"
	PermRetainersRead   = "retainers.read"
	PermRetainersWrite  = "retainers.write"
	PermTaxWrite        = "tax.write"
	PermAuditRead       = "audit.read"
	PermUsersManage     = "users.manage"
)

// rolePermissions is the static role -> permission table. Admin passes every check.
var rolePermissions = map[string][]string{
	model.RoleAccountant: {
		PermInvoicesRead, PermInvoicesWrite,
		PermRetainersRead, PermRetainersWrite,
	},
	model.RoleViewer: {
		PermInvoicesRead, PermRetainersRead,
	},
}

// PermissionsForRole lists the permission codes granted to role.
func PermissionsForRole(role string) []string {
	if role == model.RoleAdmin {
		return []string{
			PermInvoicesRead, PermInvoicesWrite, PermInvoicesApprove,
			PermRetainersRead, PermRetainersWrite,
			PermTaxWrite, PermAuditRead, PermUsersManage,
		}
	}
	return rolePermissions[role]
}

// HasPermission reports whether role grants perm.
func HasPermission(role, perm string) bool {
	if role == model.RoleAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func SetTokenCookie(c *gin.Context, token string, maxAge int, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", token, maxAge, "/", "", secure, true)
}

// ClearTokenCookie removes the access_token cookie
func ClearTokenCookie(c *gin.Context, secure bool) {
	SetTokenCookie(c, "", -1, secure)
}

// Authenticate validates the JWT from the access_token cookie or the
// Authorization header and stores userID and userRole in the context
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				response.Abort(c, http.StatusUnauthorized, "Authorization is missing")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Abort(c, http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'")
				return
			}
			tokenString = parts[1]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			response.Abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok || !model.ValidRole(userRole) {
			response.Abort(c, http.StatusForbidden, "Role not found in token")
			return
		}
		userID, _ := claims["sub"].(string)

		c.Set("userID", userID)
		c.Set("userRole", userRole)

		c.Next()
	}
}

// RequireRole checks that the authenticated user's role is one of allowedRoles
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("userRole")
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "Access denied: insufficient permissions")
	}
}

// RequirePermission checks that the authenticated user's role grants every required permission
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("userRole")
		for _, required := range requiredPerms {
			if !HasPermission(userRole, required) {
				response.Abort(c, http.StatusForbidden, "Access denied: missing permission '"+required+"'")
				return
			}
		}
		c.Next()
	}
}
