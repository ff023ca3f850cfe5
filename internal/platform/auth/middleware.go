package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

// ロール
const (
	RoleAdmin      = "admin"
	RoleConsultor  = "consultor"
	RoleDocente    = "docente"
	RoleEstudiante = "estudiante"
)

// Claims: sub = patron_id
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal は認証済みの利用者
type Principal struct {
	ID   string
	Role string
}

// IsStaff: 他人の貸出も参照できるロール
func (p Principal) IsStaff() bool {
	return p.Role == RoleAdmin || p.Role == RoleConsultor
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CurrentPrincipal は RequireAuth が詰めた値を取り出す
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	id := c.GetString(CtxUserIDKey)
	if id == "" {
		return Principal{}, false
	}
	return Principal{ID: id, Role: c.GetString(CtxRoleKey)}, true
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHENTICATED", "message": msg}})
}

func forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "PERMISSION_DENIED", "message": msg}})
}

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			unauthorized(c, "missing Authorization header")
			return
		}

		scheme, tokenStr, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			unauthorized(c, "invalid Authorization header")
			return
		}
		tokenStr = strings.TrimSpace(tokenStr)
		if tokenStr == "" {
			unauthorized(c, "empty token")
			return
		}

		var claims Claims
		token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}
		if claims.Subject == "" {
			unauthorized(c, "missing sub")
			return
		}

		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r != "" {
			roleSet[r] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		role := c.GetString(CtxRoleKey)
		if role == "" {
			forbidden(c, "missing role")
			return
		}
		if _, ok := roleSet[role]; !ok {
			forbidden(c, "forbidden")
			return
		}
		c.Next()
	}
}

// Staff は admin と consultor
func Staff() gin.HandlerFunc { return RequireRole(RoleAdmin, RoleConsultor) }

func AdminOnly() gin.HandlerFunc { return RequireRole(RoleAdmin) }
