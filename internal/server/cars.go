package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListCars(c *gin.Context) {
	cars, err := s.deviceSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(cars),
		"cars":  cars,
	})
}

func (s *Server) GetCarStatus(c *gin.Context) {
	status, err := s.deviceSvc.Get(c.Request.Context(), deviceIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) RegisterCar(c *gin.Context) {
	deviceID := deviceIDFrom(c)
	status, err := s.deviceSvc.Register(c.Request.Context(), deviceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Car registered successfully",
		"deviceId": deviceID,
		"status":   status,
	})
}

func (s *Server) StartCharging(c *gin.Context) {
	deviceID := deviceIDFrom(c)
	if err := s.deviceSvc.StartCharging(c.Request.Context(), deviceID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Charging started",
		"deviceId": deviceID,
	})
}

func (s *Server) StopCharging(c *gin.Context) {
	deviceID := deviceIDFrom(c)
	if err := s.deviceSvc.StopCharging(c.Request.Context(), deviceID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Charging stopped",
		"deviceId": deviceID,
	})
}
