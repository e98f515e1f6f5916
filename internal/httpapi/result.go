package httpapi

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// result is the success envelope. Context narrates the document operations
// the request performed, for the demo front end.
type result struct {
	Data    any      `json:"data"`
	Context []string `json:"context,omitempty"`
}

// failure is the error envelope. Failure only ever carries a fixed,
// taxonomy-level message.
type failure struct {
	Failure string `json:"failure"`
}

func respond(c *gin.Context, status int, data any, ops ...string) {
	c.JSON(status, result{Data: data, Context: ops})
}

// fail writes a failure body and records err for the request log.
func fail(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, failure{Failure: msg})
}

func narrate(op, tenant, collection, key string) string {
	return fmt.Sprintf("KV %s - scoped to %s.%s: document %s", op, tenant, collection, key)
}

