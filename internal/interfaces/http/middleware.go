package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// Identity headers set by the upstream gateway after authentication
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserRole     = "X-User-Role"
	HeaderDepartmentID = "X-Department-ID"
)

const actorKey = "f07.actor"

// identityMiddleware reads the caller's identity from trusted gateway headers
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(HeaderUserID), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + HeaderUserID + " header",
				Kind:    "UNAUTHENTICATED",
			})
			return
		}
		role := strings.TrimSpace(c.GetHeader(HeaderUserRole))
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + HeaderUserRole + " header",
				Kind:    "UNAUTHENTICATED",
			})
			return
		}

		var deptID int64
		if raw := c.GetHeader(HeaderDepartmentID); raw != "" {
			deptID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, Response{
					Success: false,
					Error:   "invalid " + HeaderDepartmentID + " header",
					Kind:    string(workflow.KindInvalidInput),
				})
				return
			}
		}

		c.Set(actorKey, workflow.Actor{UserID: userID, RoleName: role, DepartmentID: deptID})
		c.Next()
	}
}

// actorFrom returns the identity stored by identityMiddleware
func actorFrom(c *gin.Context) workflow.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(workflow.Actor)
	return actor
}
