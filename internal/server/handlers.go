package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) checkUserExists(c *gin.Context) {
	platformName, username := c.Query("platform"), c.Query("username")
	if platformName == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and username are required"})
		return
	}
	p, err := models.ParsePlatform(platformName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": s.users.UserExists(p, username)})
}

type userEntry struct {
	Username string          `json:"username"`
	Profile  *models.Profile `json:"profile,omitempty"`
}

// listUsers lists the scraped users of a platform with the profile saved by
// their last run
func (s *Server) listUsers(c *gin.Context) {
	p, err := models.ParsePlatform(c.Query("platform"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	names, err := s.users.ListUsers(p)
	if err != nil {
		s.log.WithError(err).ErrorWithFields("Failed to list users", map[string]interface{}{"platform": string(p)})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	users := make([]userEntry, 0, len(names))
	for _, name := range names {
		entry := userEntry{Username: name}
		if profile, err := s.users.LoadProfile(s.users.Dir(p, name)); err == nil {
			entry.Profile = &profile
		}
		users = append(users, entry)
	}
	c.JSON(http.StatusOK, gin.H{"platform": p, "users": users})
}

// scrapeStream runs one scrape and relays its events as they happen. The
// run lives as long as the request: a client that disconnects cancels it.
func (s *Server) scrapeStream(c *gin.Context) {
	platformName, username := c.Query("platform"), c.Query("username")
	if platformName == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and username are required"})
		return
	}

	log := s.log.WithFields(map[string]interface{}{"platform": platformName, "username": username})
	p, err := models.ParsePlatform(platformName)
	if err != nil {
		s.openStream(c)
		if err := events.NewSSEEmitter(c.Writer).Emit(events.Error(fmt.Sprintf("Unsupported platform %q", platformName))); err != nil {
			log.WithError(err).Debug("SSE write failed")
		}
		return
	}

	key := models.TargetKey(p, username)
	if !s.acquire(key) {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("a scrape of %s is already running", key)})
		return
	}
	defer s.release(key)

	s.openStream(c)
	em := events.NewSSEEmitter(c.Writer)

	ctx, cancel := context.WithCancel(c.Request.Context())
	stream := events.Channel(ctx, s.scraper.Scrape(ctx, p, username))
	defer func() {
		cancel()
		// wait for the run to release its browser
		for range stream {
		}
	}()

	log.Debug("SSE client connected")
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return
			}
			if err := em.Emit(ev); err != nil {
				log.WithError(err).Debug("SSE write failed (client likely disconnected)")
				return
			}
		case <-ticker.C:
			if err := em.Heartbeat(); err != nil {
				log.Debug("SSE heartbeat failed (client disconnected)")
				return
			}
		case <-ctx.Done():
			log.Debug("SSE client request context cancelled")
			return
		}
	}
}

func (s *Server) openStream(c *gin.Context) {
	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	c.Writer.Flush()
}

func setSSEHeaders(w gin.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}
