package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
)

type createScheduleRequest struct {
	ID            string     `json:"id"`
	ScheduledTime *time.Time `json:"scheduledTime"`
}

func (s *Server) ListSchedules(c *gin.Context) {
	schedules, err := s.scheduleSvc.ListByDevice(c.Request.Context(), deviceIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedules)
}

// CreateSchedule ignores any deviceId or isCompleted in the body; the route
// decides the device and new schedules always start pending.
func (s *Server) CreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, scheduledomain.ErrInvalidSchedule)
		return
	}

	schedule, err := s.scheduleSvc.Create(c.Request.Context(), scheduledomain.CreateRequest{
		DeviceID:      deviceIDFrom(c),
		ID:            strings.TrimSpace(req.ID),
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (s *Server) DeleteSchedule(c *gin.Context) {
	scheduleID := strings.TrimSpace(c.Param("scheduleId"))
	if err := s.scheduleSvc.Delete(c.Request.Context(), deviceIDFrom(c), scheduleID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully"})
}
