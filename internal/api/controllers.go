package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oddsarb.dev/core/internal/venue"
)

// respondError writes the admin API's one error envelope shape. Every
// handler and middleware in this package uses it so a client only has to
// learn one error format.
func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"code": code, "error": msg})
}

// parseVenue validates a query-string venue id against the closed venue
// set; empty string means "no filter".
func parseVenue(raw string) (*venue.ID, error) {
	if raw == "" {
		return nil, nil
	}
	switch venue.ID(raw) {
	case venue.Polymarket, venue.Kalshi:
		v := venue.ID(raw)
		return &v, nil
	default:
		return nil, fmt.Errorf("unknown venue %q", raw)
	}
}

// listStrategies reports every wired strategy's identity (spec.md §6:
// "list strategies").
func (s *Server) listStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.ListStrategies())
}

// getOrders reports open orders, optionally filtered by ?venue= (spec.md
// §6: "list/get orders by id").
func (s *Server) getOrders(c *gin.Context) {
	v, err := parseVenue(c.Query("venue"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_VENUE", err.Error())
		return
	}
	c.JSON(http.StatusOK, s.Engine.GetOpenOrders(v))
}

// getPositions reports open positions, optionally filtered by ?venue=.
func (s *Server) getPositions(c *gin.Context) {
	v, err := parseVenue(c.Query("venue"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_VENUE", err.Error())
		return
	}
	c.JSON(http.StatusOK, s.Engine.GetPositions(v))
}

// cancelOrder cancels one order by its venue external id (spec.md §6:
// "cancel order by id"). The venue is required since external ids are
// only unique within a venue.
func (s *Server) cancelOrder(c *gin.Context) {
	v, err := parseVenue(c.Query("venue"))
	if err != nil || v == nil {
		respondError(c, http.StatusBadRequest, "INVALID_VENUE", "venue query parameter is required")
		return
	}
	if err := s.Engine.CancelOrder(c.Request.Context(), *v, c.Param("id")); err != nil {
		respondError(c, http.StatusBadGateway, "CANCEL_FAILED", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// getRisk reports the kill switch's current trip state and live risk
// figures (spec.md §6's risk surface).
func (s *Server) getRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.RiskStatus())
}

// getRanking reports the live per-strategy-kind ranking weights (spec.md
// §6: "get/update ranking criteria").
func (s *Server) getRanking(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.GetRankingCriteria())
}

// updateRanking merges new per-strategy-kind weights into the live
// ranking criteria and reports the result.
func (s *Server) updateRanking(c *gin.Context) {
	var weights map[string]float64
	if err := c.BindJSON(&weights); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload")
		return
	}
	s.Engine.SetRankingCriteria(weights)
	c.JSON(http.StatusOK, s.Engine.GetRankingCriteria())
}

// metrics exposes every collector in s.Metrics in Prometheus exposition
// format (spec.md §6: "metrics pull in Prometheus exposition format").
func (s *Server) metrics(c *gin.Context) {
	promhttp.HandlerFor(s.Metrics.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}
