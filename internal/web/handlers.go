package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vadiminshakov/treasury/internal/domain"
	"go.uber.org/zap"
)

// treasuryResponse is the payload other instances consume as their proxy.
type treasuryResponse struct {
	Balances    domain.Balances `json:"balances"`
	Prices      domain.Prices   `json:"prices"`
	Source      string          `json:"source"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

func sourceOf(s domain.TreasurySnapshot) string {
	if s.IsFromCache {
		return "cache"
	}
	return "live"
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.Treasury.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"lastUpdated": snap.LastUpdated,
		"isFetching":  snap.IsFetching,
	})
}

func (s *Server) handleTreasury(c *gin.Context) {
	snap := s.Treasury.Refresh(c.Request.Context(), false)

	c.Header("Cache-Control", treasuryCacheControl)
	c.JSON(http.StatusOK, treasuryResponse{
		Balances:    snap.Balances,
		Prices:      snap.Prices,
		Source:      sourceOf(snap),
		LastUpdated: snap.LastUpdated,
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.Treasury.Snapshot())
}

func (s *Server) handleRefresh(c *gin.Context) {
	c.JSON(http.StatusOK, s.Treasury.Refresh(c.Request.Context(), true))
}

func (s *Server) handleStream(c *gin.Context) {
	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.Treasury.Subscribe()
	defer s.Treasury.Unsubscribe(ch)

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case snap, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				s.logger.Warn("encode snapshot for stream", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: snapshot\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
