package replay

import (
	"net/http"

	"monte/internal/asset"

	"github.com/gin-gonic/gin"
)

type symbolRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// newRouter 提供观察模拟进度的只读 API，外加 watch/unwatch 两个写操作。
func newRouter(m *asset.Manager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/replay")
	api.GET("/status", func(c *gin.Context) {
		ts, _ := m.LatestTimestamp()
		c.JSON(http.StatusOK, gin.H{
			"run_id":    m.RunID(),
			"state":     m.State(),
			"steps":     m.Steps(),
			"reference": m.ReferenceSymbol(),
			"symbols":   m.Symbols(),
			"latest":    ts,
		})
	})
	api.GET("/assets", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"symbols": m.Symbols()})
	})
	api.GET("/assets/:symbol/latest", func(c *gin.Context) {
		bar, err := m.LatestSnapshot(c.Param("symbol"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, bar)
	})
	api.GET("/assets/:symbol/window", func(c *gin.Context) {
		window, err := m.WindowSnapshot(c.Param("symbol"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": len(window), "bars": window})
	})
	api.POST("/watch", func(c *gin.Context) {
		var req symbolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := m.Watch(req.Symbol); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"watching": true})
	})
	api.POST("/unwatch", func(c *gin.Context) {
		var req symbolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": m.Unwatch(req.Symbol)})
	})
	return r
}
