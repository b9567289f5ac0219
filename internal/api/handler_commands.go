package api

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"game-station/internal/parse"
	"game-station/internal/station"
)

type commandRequest struct {
	Command string `json:"command"`
	Params  string `json:"params"`
	Line    string `json:"line"`
}

// PostCommand submits a lifecycle or game command, either as {command, params} or as a
// raw "Name:Params" line.
func (h *Handler) PostCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cmd := station.Command{Name: req.Command, Params: req.Params}
	if req.Line != "" {
		name, params, err := parse.Command(req.Line)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cmd = station.Command{Name: name, Params: params}
	}
	if cmd.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	if err := h.station.SubmitCommand(c.Request.Context(), cmd); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"state": h.station.Snapshot().State})
}

// PostHeartbeat forwards a heartbeat to the hub on demand.
func (h *Handler) PostHeartbeat(c *gin.Context) {
	if err := h.station.SendHeartbeat(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type consoleRequest struct {
	Key string `json:"key" binding:"required"`
}

// PostConsole injects a maintenance key press.
func (h *Handler) PostConsole(c *gin.Context) {
	var req consoleRequest
	if err := c.ShouldBindJSON(&req); err != nil || utf8.RuneCountInString(req.Key) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key must be a single character"})
		return
	}
	key, _ := utf8.DecodeRuneInString(req.Key)
	c.JSON(http.StatusOK, gin.H{"handled": h.station.ProcessConsoleInput(key)})
}

// GetStatus returns the controller snapshot.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.station.Snapshot())
}

// GetCommands lists lifecycle commands and the ruleset's game commands.
func (h *Handler) GetCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"lifecycle": []string{station.CmdGenerateAccessCode, station.CmdAttachClient, station.CmdBeginGame},
		"game":      h.station.Commands(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, station.ErrCommandRejected), errors.Is(err, station.ErrNotOnline):
		return http.StatusConflict
	case errors.Is(err, station.ErrStatusNotConfirmed), errors.Is(err, station.ErrAccessCodeDelivery):
		return http.StatusBadGateway
	case errors.Is(err, station.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
