package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Invalidator drops cached data derived from the catalogue.
type Invalidator interface {
	Invalidate()
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate() {}

func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	value, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return def
	}
	return value
}

// orderClause maps a sort query such as "-created_at" onto an ORDER BY
// clause, accepting only whitelisted columns.
func orderClause(raw string, allowed map[string]string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	direction := "ASC"
	if strings.HasPrefix(raw, "-") {
		direction = "DESC"
		raw = raw[1:]
	}
	column, ok := allowed[raw]
	if !ok {
		return fallback
	}
	return column + " " + direction + ", id DESC"
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func adminIDFromContext(c *gin.Context) uint64 {
	value, ok := c.Get("adminID")
	if !ok {
		return 0
	}
	id, _ := value.(uint64)
	return id
}
