package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/homelead/distributor/internal/channel"
	"github.com/homelead/distributor/internal/delivery"
	"github.com/homelead/distributor/internal/distribution"
	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.POST("/distribution/enqueue", handleEnqueue(opts.Manager, opts.DB))
	api.POST("/replies", handleReply(opts.Manager))

	api.GET("/work-items/:id", handleWorkItem(opts.DB))
	api.GET("/dead-letters", handleDeadLetters(opts.DB))
	api.POST("/dead-letters/:id/resend", handleResend(opts.DB))

	// Cron endpoints mirror the scheduler's passes so an external
	// scheduler (or an operator) can trigger them on demand.
	cron := api.Group("/cron")
	cron.POST("/sweep", handleSweep(opts.Manager))
	if opts.Worker != nil {
		cron.POST("/delivery", handleDelivery(opts.Worker))
	}
	if opts.Monitor != nil {
		cron.POST("/health", handleHealth(opts.Monitor))
	}
}

type enqueueRequest struct {
	SubjectType string `json:"subject_type" binding:"required"`
	SubjectID   uint   `json:"subject_id" binding:"required"`
}

// handleEnqueue creates a work item for the subject and immediately
// starts distribution. A duplicate unresolved subject is a conflict; an
// empty candidate pool is not an HTTP error, the item is created and
// terminally failed, which the returned record shows.
func handleEnqueue(mgr *distribution.Manager, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req enqueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ref := distribution.SubjectRef{Type: req.SubjectType, ID: req.SubjectID}
		item, err := mgr.Enqueue(c.Request.Context(), ref)
		if errors.Is(err, distribution.ErrAlreadyQueued) {
			c.JSON(http.StatusConflict, gin.H{"error": "subject already queued"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err = mgr.Start(c.Request.Context(), item.ID)
		if err != nil && !errors.Is(err, distribution.ErrNoEligibleCandidates) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var fresh models.WorkItem
		if err := db.First(&fresh, item.ID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, fresh)
	}
}

type replyRequest struct {
	From      string `json:"from" binding:"required"`
	Token     string `json:"token" binding:"required"`
	Raw       string `json:"raw"`
	AttemptID uint   `json:"attempt_id"`
}

// handleReply feeds an inbound message into reply resolution. Always
// 200 on a well-formed request: uncorrelated or stale replies are
// dropped server-side, and the gateway webhook must never see that as a
// failure worth retrying.
func handleReply(mgr *distribution.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req replyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		raw := req.Raw
		if raw == "" {
			raw = req.Token
		}
		reply := distribution.InboundReply{
			Address:   req.From,
			Token:     req.Token,
			Raw:       raw,
			AttemptID: req.AttemptID,
		}
		if err := mgr.HandleReply(c.Request.Context(), reply); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleWorkItem(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var item models.WorkItem
		err = db.Preload("Attempts").First(&item, uint(id)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "work item not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func handleDeadLetters(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		var letters []models.DeadLetter
		if err := db.Order("id DESC").Limit(limit).Find(&letters).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, letters)
	}
}

// handleResend requeues a dead-lettered message. Resend is the only path
// back from failed; nothing retries automatically past the attempt cap.
func handleResend(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		if err := delivery.Resend(db, uint(id)); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "requeued"})
	}
}

func handleSweep(mgr *distribution.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := mgr.SweepTimeouts(c.Request.Context(), 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleDelivery(worker *delivery.Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := worker.RunOnce(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleHealth(monitor *channel.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := monitor.RunOnce(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}
