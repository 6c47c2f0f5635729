package main

import (
	"net/http/httptest"
	"testing"

	"github.com/agrifocus/mandi_backend/appctx"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/gin-gonic/gin"
)

func TestActorMiddlewareReadsForwardedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(actorMiddleware())

	var gotId int
	var gotName string
	r.GET("/ping", func(c *gin.Context) {
		gotId, _ = utils.GetUserIdFromContext(c.Request.Context())
		gotName, _ = appctx.GetString(c.Request.Context(), appctx.ContextKeyUserName)
		c.Status(204)
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-User-Id", "42")
	req.Header.Set("X-User-Name", "ramesh")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if gotId != 42 || gotName != "ramesh" {
		t.Fatalf("actor = (%d, %q), want (42, \"ramesh\")", gotId, gotName)
	}
}

func TestActorMiddlewareIgnoresBadUserId(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(actorMiddleware())

	seen := true
	r.GET("/ping", func(c *gin.Context) {
		_, seen = utils.GetUserIdFromContext(c.Request.Context())
		c.Status(204)
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-User-Id", "not-a-number")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if seen {
		t.Fatal("malformed X-User-Id should not populate the context")
	}
}
